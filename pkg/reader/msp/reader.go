// Package msp reads peptide entries from MSP (NIST/Prosit) spectral libraries.
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

// Reader streams library entries from an MSP file.
type Reader struct {
	scanner *bufio.Scanner
	modDB   *core.ModDatabase
	logger  *zap.Logger
	lineNum int
	current *core.LibraryEntry
	err     error
}

// NewReader creates a reader. A nil modDB uses core.DefaultModDatabase and a
// nil logger discards warnings.
func NewReader(r io.Reader, modDB *core.ModDatabase, logger *zap.Logger) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{
		scanner: sc,
		modDB:   modDB,
		logger:  logger,
	}
}

// Next advances to the next entry. Returns false at end of input or on error.
func (r *Reader) Next() bool {
	r.current = nil
	entry, err := r.readEntry()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	r.current = entry
	return true
}

// Entry returns the current entry.
func (r *Reader) Entry() *core.LibraryEntry { return r.current }

// Err returns the first read or parse error.
func (r *Reader) Err() error { return r.err }

func (r *Reader) readEntry() (*core.LibraryEntry, error) {
	entry := &core.LibraryEntry{SourceFormat: "msp"}
	numPeaks := -1

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			if entry.Sequence == "" {
				continue
			}
			if numPeaks >= 0 {
				return entry, nil
			}
			continue
		}

		if numPeaks < 0 {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			switch strings.ToLower(key) {
			case "name":
				if err := parseName(entry, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "comment":
				r.parseComment(entry, value)
			case "num peaks":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("line %d: invalid num peaks %q", r.lineNum, value)
				}
				numPeaks = n
				entry.Peaks = make([]core.Peak, 0, n)
				if n == 0 {
					return entry, nil
				}
			}
			continue
		}

		peak, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		entry.Peaks = append(entry.Peaks, peak)
		if len(entry.Peaks) == numPeaks {
			return entry, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if entry.Sequence != "" {
		return entry, nil
	}
	return nil, io.EOF
}

// parseName reads "SEQUENCE/CHARGE". Bracketed modifications in the name
// are stripped; they are taken from the comment instead.
func parseName(entry *core.LibraryEntry, name string) error {
	seq, chargeStr, ok := strings.Cut(name, "/")
	if !ok {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}
	// Some libraries append an energy suffix: "PEPTIDEK/2_0"
	chargeStr, _, _ = strings.Cut(strings.TrimSpace(chargeStr), "_")
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	entry.Sequence = stripBrackets(seq)
	entry.Charge = charge
	return nil
}

func stripBrackets(seq string) string {
	var b strings.Builder
	depth := 0
	for _, c := range seq {
		switch {
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case depth == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// parseComment reads key=value metadata, e.g.
// "Parent=414.71 Protein=sp|P12345|X iRT=61.01 ModString=SEQ//TMT_Pro@R-1/4".
func (r *Reader) parseComment(entry *core.LibraryEntry, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "\"")
		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				entry.PrecursorMZ = mz
			}
		case "Protein":
			entry.Protein = value
		case "iRT", "RetentionTime":
			if rt, err := strconv.ParseFloat(value, 64); err == nil {
				entry.RetentionTime = &rt
			}
		case "ModString":
			r.parseModString(entry, value)
		}
	}
}

// parseModString reads "SEQUENCE//Mod@Pos;Mod@Pos/Charge".
func (r *Reader) parseModString(entry *core.LibraryEntry, modString string) {
	_, mods, ok := strings.Cut(modString, "//")
	if !ok {
		return
	}
	mods, _, _ = strings.Cut(mods, "/")
	parsed, err := r.modDB.ParseModString(mods, entry.Sequence)
	if err != nil {
		r.logger.Warn("skipping modifications",
			zap.Int("line", r.lineNum),
			zap.String("mods", mods),
			zap.Error(err))
		return
	}
	entry.Modifications = append(entry.Modifications, parsed...)
}

// parsePeak reads `mz intensity "annotation/error"`.
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	peak := core.Peak{MZ: mz, Intensity: intensity}
	if len(fields) >= 3 {
		annotation := strings.Trim(fields[2], "\"")
		annotation, _, _ = strings.Cut(annotation, "/")
		annotation, _, _ = strings.Cut(annotation, ",")
		peak.Annotation = annotation
	}
	return peak, nil
}
