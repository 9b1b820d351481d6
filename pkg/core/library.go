package core

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// LibraryEntry is one peptide record read from a spectral library.
type LibraryEntry struct {
	// Required fields
	Sequence string // Peptide sequence
	Charge   int    // Precursor charge state

	// Optional metadata
	PrecursorMZ   float64
	Peaks         []Peak
	Modifications []Modification
	Protein       string
	RetentionTime *float64

	// Internal tracking
	SourceFile   string
	SourceFormat string // msp, sptxt
}

// Peak represents a single m/z, intensity pair with an optional annotation.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // Ion annotation (e.g., "y3", "b2^2")
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// ValidationError represents an error found during entry validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that an entry can be turned into a peptide.
func (e *LibraryEntry) Validate() error {
	var errs []string

	if err := ValidateSequence(e.Sequence); err != nil {
		errs = append(errs, err.Error())
	}
	if e.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}

	for i, peak := range e.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) || peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "LibraryEntry",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// SortPeaks sorts peaks by m/z in ascending order.
func (e *LibraryEntry) SortPeaks() {
	sort.Slice(e.Peaks, func(i, j int) bool {
		return e.Peaks[i].MZ < e.Peaks[j].MZ
	})
}

// Name returns the entry name in format "Sequence/Charge"
func (e *LibraryEntry) Name() string {
	return fmt.Sprintf("%s/%d", e.Sequence, e.Charge)
}

// ModString returns the modifications in format "mass@pos;mass@pos;..."
func (e *LibraryEntry) ModString() string {
	return ModString(e.Modifications)
}

// ModString formats modifications as "mass@pos;mass@pos;...".
func ModString(mods []Modification) string {
	if len(mods) == 0 {
		return ""
	}
	parts := make([]string, 0, len(mods))
	for _, mod := range mods {
		parts = append(parts, fmt.Sprintf("%.6f@%d", mod.Mass, mod.Position))
	}
	return strings.Join(parts, ";")
}

var annotationPattern = regexp.MustCompile(`^([abcxyz])(\d+)(?:\^(\d+))?$`)

// ObservedIntensities maps singly-annotated fragment labels (e.g. "y5") to
// the most intense peak carrying that label at any charge. Neutral losses
// and unannotated peaks are ignored.
func (e *LibraryEntry) ObservedIntensities() map[string]float64 {
	out := make(map[string]float64)
	for _, peak := range e.Peaks {
		m := annotationPattern.FindStringSubmatch(peak.Annotation)
		if m == nil {
			continue
		}
		label := m[1] + m[2]
		if peak.Intensity > out[label] {
			out[label] = peak.Intensity
		}
	}
	return out
}

// Peptide converts the entry to a fragmented peptide.
func (e *LibraryEntry) Peptide() (*Peptide, error) {
	opts := []PeptideOption{WithProtein(e.Protein)}
	if obs := e.ObservedIntensities(); len(obs) > 0 {
		opts = append(opts, WithObservedIntensities(obs))
	}
	return NewPeptide(e.Sequence, e.Modifications, opts...)
}
