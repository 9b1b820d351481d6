package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ModDatabase resolves modification names to mass shifts
type ModDatabase struct {
	mods map[string]float64 // name -> mass shift
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
	}
}

// LoadFromCSV loads modifications from CSV with a header row (mod,massshift[,aa]).
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 || line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		name := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}
		db.mods[name] = mass
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}
	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// Len returns the number of known modifications.
func (db *ModDatabase) Len() int { return len(db.mods) }

// ParseModString parses "57.021464@2;15.994915@8" or "Carbamidomethyl@C2;Oxidation@M8".
// Positions are 1-based in the string and 0-based in the result.
func (db *ModDatabase) ParseModString(modStr string, sequence string) ([]Modification, error) {
	if modStr == "" {
		return nil, nil
	}

	var mods []Modification
	for _, part := range strings.Split(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		nameOrMass, posStr, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position' or 'mass@position'", part)
		}
		nameOrMass = strings.TrimSpace(nameOrMass)

		// A bare number is a direct mass shift
		mass, err := strconv.ParseFloat(nameOrMass, 64)
		if err != nil {
			var known bool
			mass, known = db.GetMass(nameOrMass)
			if !known {
				return nil, fmt.Errorf("unknown modification '%s'", nameOrMass)
			}
		}

		position, err := parsePosition(posStr, sequence)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", posStr, err)
		}

		mods = append(mods, Modification{
			Mass:     mass,
			Position: position,
			Name:     nameOrMass,
		})
	}
	return mods, nil
}

// parsePosition parses a 1-based position such as "2" or "C2" into a
// residue index, or "-1" for the N-terminus. "0" maps to the first residue
// like "1" does.
func parsePosition(posStr string, sequence string) (int, error) {
	posStr = strings.TrimSpace(posStr)

	if posStr == "-1" || strings.HasSuffix(posStr, "-1") {
		return -1, nil
	}

	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY")
	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}
	if pos > len(sequence)+1 {
		return 0, fmt.Errorf("position %d beyond sequence length %d", pos, len(sequence))
	}
	if pos > 0 {
		pos--
	}
	return pos, nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common unimod entries
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	for name, mass := range commonModifications {
		db.Add(name, mass)
	}
	return db
}

var commonModifications = map[string]float64{
	"Acetyl":               42.010565,
	"Amidated":             -0.984016,
	"Biotin":               226.077598,
	"Carbamidomethyl":      57.021464,
	"Carbamyl":             43.005814,
	"Carboxymethyl":        58.005479,
	"Deamidated":           0.984016,
	"Dehydrated":           -18.010565,
	"Dimethyl":             28.0313,
	"Gln->pyro-Glu":        -17.026549,
	"Glu->pyro-Glu":        -18.010565,
	"GlyGly":               114.042927,
	"HexNAc":               203.079373,
	"Hex":                  162.052824,
	"Methyl":               14.01565,
	"Met->Hse":             -29.992806,
	"Oxidation":            15.994915,
	"Phospho":              79.966331,
	"Propionamide":         71.037114,
	"Pyro-carbamidomethyl": 39.994915,
	"Sulfo":                79.956815,
	"TMT":                  229.162932,
	"TMT6plex":             229.162932,
	"TMTPro":               304.207146,
	"TMT_Pro":              304.207146,
	"Trimethyl":            42.04695,
	"iTRAQ4plex":           144.102063,
	"iTRAQ8plex":           304.205360,
}
