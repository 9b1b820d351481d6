// Package sptxt reads peptide entries from SpectraST (.sptxt) spectral libraries.
package sptxt

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

// Inline modifications: "n[305]" or a residue followed by its modified mass, "C[160]".
var inlineMod = regexp.MustCompile(`([a-zA-Z]?)\[(\d+(?:\.\d+)?)\]`)

// Reader streams library entries from an SPTXT file.
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
	return &Reader{scanner: sc, modDB: modDB, logger: logger}
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
	entry := &core.LibraryEntry{SourceFormat: "sptxt"}
	numPeaks := -1

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "###") {
			if numPeaks >= 0 && entry.Sequence != "" {
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
			switch key {
			case "Name":
				if err := r.parseName(entry, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "PrecursorMZ":
				if mz, err := strconv.ParseFloat(value, 64); err == nil {
					entry.PrecursorMZ = mz
				}
			case "Comment":
				r.parseComment(entry, value)
			case "NumPeaks":
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

// parseName reads "n[305]PEPC[160]TIDEK/3".
func (r *Reader) parseName(entry *core.LibraryEntry, name string) error {
	rawSeq, chargeStr, ok := strings.Cut(name, "/")
	if !ok {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	seq, mods, err := parseInlineModifications(rawSeq)
	if err != nil {
		return fmt.Errorf("failed to parse modifications from sequence: %w", err)
	}
	entry.Sequence = seq
	entry.Charge = charge
	entry.Modifications = mods
	return nil
}

// parseInlineModifications strips bracketed masses from a sequence. The
// bracketed value is the nominal mass of the modified residue (or of the
// modified N-terminal hydrogen for "n"), so the shift is the difference.
func parseInlineModifications(rawSeq string) (string, []core.Modification, error) {
	var sequence strings.Builder
	var mods []core.Modification
	position := 0
	last := 0

	for _, m := range inlineMod.FindAllStringSubmatchIndex(rawSeq, -1) {
		before := rawSeq[last:m[0]]
		sequence.WriteString(before)
		position += len(before)

		aa := rawSeq[m[2]:m[3]]
		massStr := rawSeq[m[4]:m[5]]
		total, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid modification mass '%s': %w", massStr, err)
		}

		switch aa {
		case "n", "":
			mods = append(mods, core.Modification{Mass: total - core.MassH, Position: -1, Name: massStr})
		case "c":
			mods = append(mods, core.Modification{Mass: total - core.MassO - core.MassH, Position: -2, Name: massStr})
		default:
			residue, ok := core.ResidueMass([]rune(aa)[0])
			if !ok {
				return "", nil, fmt.Errorf("unknown residue '%s'", aa)
			}
			sequence.WriteString(aa)
			mods = append(mods, core.Modification{Mass: total - residue, Position: position, Name: massStr})
			position++
		}
		last = m[1]
	}
	sequence.WriteString(rawSeq[last:])

	seq := sequence.String()
	for i := range mods {
		if mods[i].Position == -2 {
			mods[i].Position = len(seq)
		}
	}
	return seq, mods, nil
}

// parseComment reads key=value metadata.
func (r *Reader) parseComment(entry *core.LibraryEntry, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				entry.PrecursorMZ = mz
			}
		case "Protein":
			// "1/sp|P02768|ALBU_HUMAN": count, then accessions
			if _, acc, ok := strings.Cut(value, "/"); ok {
				value = acc
			}
			entry.Protein, _, _ = strings.Cut(value, "/")
		case "RetentionTime":
			first, _, _ := strings.Cut(value, ",")
			if rt, err := strconv.ParseFloat(first, 64); err == nil {
				entry.RetentionTime = &rt
			}
		case "Mods":
			r.parseMods(entry, value)
		}
	}
}

// parseMods reads "2/-1,A,TMT/16,C,Carbamidomethyl" and replaces the
// nominal inline masses with the named modification's exact mass.
func (r *Reader) parseMods(entry *core.LibraryEntry, modsStr string) {
	parts := strings.Split(modsStr, "/")
	for _, item := range parts[1:] {
		fields := strings.Split(item, ",")
		if len(fields) != 3 {
			continue
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		name := fields[2]
		mass, ok := r.modDB.GetMass(name)
		if !ok {
			r.logger.Warn("unknown modification, keeping nominal mass",
				zap.Int("line", r.lineNum),
				zap.String("modification", name))
			continue
		}

		replaced := false
		for i := range entry.Modifications {
			if entry.Modifications[i].Position == pos {
				entry.Modifications[i].Name = name
				entry.Modifications[i].Mass = mass
				replaced = true
				break
			}
		}
		if !replaced {
			entry.Modifications = append(entry.Modifications, core.Modification{Mass: mass, Position: pos, Name: name})
		}
	}
}

// parsePeak reads "mz intensity annotation/error ...".
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
		annotation, _, _ := strings.Cut(fields[2], "/")
		annotation, _, _ = strings.Cut(annotation, ",")
		peak.Annotation = annotation
	}
	return peak, nil
}
