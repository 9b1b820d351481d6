// Package filter narrows library peaks and candidate product ions.
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

// Config holds filtering configuration. Zero values disable a filter.
type Config struct {
	MinMZ             float64  // Lowest singly charged m/z kept
	MaxMZ             float64  // Highest singly charged m/z kept
	MinFragmentLength int      // Shortest fragment (ion position) kept
	TopN              int      // Keep only the N most intense ions
	IntensityCutoff   float64  // Keep only ions above this % of the most intense
	IonTypes          []string // Keep only peaks annotated with these series (library peaks only)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MinMZ < 0 || c.MaxMZ < 0 {
		return &core.ValidationError{Field: "mz_range", Message: "m/z bounds must not be negative"}
	}
	if c.MaxMZ > 0 && c.MinMZ > c.MaxMZ {
		return &core.ValidationError{Field: "mz_range", Message: fmt.Sprintf("min %.4f exceeds max %.4f", c.MinMZ, c.MaxMZ)}
	}
	if c.MinFragmentLength < 0 || c.TopN < 0 {
		return &core.ValidationError{Field: "filter", Message: "lengths and counts must not be negative"}
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff > 100 {
		return &core.ValidationError{Field: "intensity_cutoff", Message: "must be a percentage between 0 and 100"}
	}
	for _, t := range c.IonTypes {
		if _, err := core.ParseProductIonType(t); err != nil {
			return &core.ValidationError{Field: "ion_types", Message: err.Error()}
		}
	}
	return nil
}

// Enabled reports whether any candidate filter is configured.
func (c *Config) Enabled() bool {
	return c.MinMZ > 0 || c.MaxMZ > 0 || c.MinFragmentLength > 0 || c.TopN > 0 || c.IntensityCutoff > 0
}

// Select keeps the candidate ions that pass the configured filters,
// preserving their order. Intensity filters use the target's observed
// library intensities and are skipped when it has none.
func (c *Config) Select(target *core.Peptide, ions []*core.ProductIon) []*core.ProductIon {
	var kept []*core.ProductIon
	for _, ion := range ions {
		mz := ion.MassOverCharge(1)
		if c.MinMZ > 0 && mz < c.MinMZ {
			continue
		}
		if c.MaxMZ > 0 && mz > c.MaxMZ {
			continue
		}
		if ion.Position() < c.MinFragmentLength {
			continue
		}
		kept = append(kept, ion)
	}

	if target == nil || !target.HasObservedIntensities() || (c.TopN == 0 && c.IntensityCutoff == 0) {
		return kept
	}

	intensity := make(map[*core.ProductIon]float64, len(kept))
	var observed []*core.ProductIon
	for _, ion := range kept {
		if v, ok := target.ObservedIntensity(ion.Label()); ok && v > 0 {
			intensity[ion] = v
			observed = append(observed, ion)
		}
	}

	if c.IntensityCutoff > 0 {
		observed = filterByIntensity(observed, intensity, c.IntensityCutoff)
	}
	if c.TopN > 0 {
		observed = filterTopN(observed, intensity, c.TopN)
	}

	keep := make(map[*core.ProductIon]bool, len(observed))
	for _, ion := range observed {
		keep[ion] = true
	}
	out := kept[:0:0]
	for _, ion := range kept {
		if keep[ion] {
			out = append(out, ion)
		}
	}
	return out
}

// filterByIntensity removes ions below the cutoff percentage of the most intense
func filterByIntensity(ions []*core.ProductIon, intensity map[*core.ProductIon]float64, cutoff float64) []*core.ProductIon {
	maxIntensity := 0.0
	for _, ion := range ions {
		maxIntensity = max(maxIntensity, intensity[ion])
	}
	threshold := (cutoff / 100.0) * maxIntensity

	var filtered []*core.ProductIon
	for _, ion := range ions {
		if intensity[ion] >= threshold {
			filtered = append(filtered, ion)
		}
	}
	return filtered
}

// filterTopN keeps the n most intense ions; ties keep the earlier ion
func filterTopN(ions []*core.ProductIon, intensity map[*core.ProductIon]float64, n int) []*core.ProductIon {
	if len(ions) <= n {
		return ions
	}
	sorted := append([]*core.ProductIon(nil), ions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return intensity[sorted[i]] > intensity[sorted[j]]
	})
	return sorted[:n]
}

// Apply filters the peaks of a library entry by annotation series,
// intensity cutoff and top-N, then sorts them by m/z.
func (c *Config) Apply(entry *core.LibraryEntry) {
	if len(c.IonTypes) > 0 {
		var filtered []core.Peak
		for _, peak := range entry.Peaks {
			if matchesIonType(peak.Annotation, c.IonTypes) {
				filtered = append(filtered, peak)
			}
		}
		entry.Peaks = filtered
	}

	if c.IntensityCutoff > 0 && len(entry.Peaks) > 0 {
		maxIntensity := 0.0
		for _, peak := range entry.Peaks {
			maxIntensity = max(maxIntensity, peak.Intensity)
		}
		threshold := (c.IntensityCutoff / 100.0) * maxIntensity
		var filtered []core.Peak
		for _, peak := range entry.Peaks {
			if peak.Intensity >= threshold {
				filtered = append(filtered, peak)
			}
		}
		entry.Peaks = filtered
	}

	if c.TopN > 0 && len(entry.Peaks) > c.TopN {
		peaks := append([]core.Peak(nil), entry.Peaks...)
		sort.SliceStable(peaks, func(i, j int) bool {
			return peaks[i].Intensity > peaks[j].Intensity
		})
		entry.Peaks = peaks[:c.TopN]
	}

	entry.SortPeaks()
}

// matchesIonType checks if an annotation belongs to one of the series
func matchesIonType(annotation string, ionTypes []string) bool {
	info, err := ParseIonAnnotation(annotation)
	if err != nil {
		return false
	}
	for _, t := range ionTypes {
		if strings.EqualFold(info.Type.String(), t) {
			return true
		}
	}
	return false
}

// IonAnnotation is a parsed fragment annotation such as "y3" or "b2^2".
type IonAnnotation struct {
	Type     core.ProductIonType
	Position int
	Charge   int
}

var annotationPattern = regexp.MustCompile(`^([abcxyz])(\d+)(?:\^(\d+))?`)

// ParseIonAnnotation parses annotations like "y3", "b2^2" or "y10^3-H2O".
func ParseIonAnnotation(annotation string) (IonAnnotation, error) {
	m := annotationPattern.FindStringSubmatch(annotation)
	if m == nil {
		return IonAnnotation{}, fmt.Errorf("invalid ion annotation format: %s", annotation)
	}
	t, err := core.ParseProductIonType(m[1])
	if err != nil {
		return IonAnnotation{}, err
	}
	pos, err := strconv.Atoi(m[2])
	if err != nil {
		return IonAnnotation{}, fmt.Errorf("invalid position in annotation %s: %w", annotation, err)
	}
	info := IonAnnotation{Type: t, Position: pos, Charge: 1}
	if m[3] != "" {
		if info.Charge, err = strconv.Atoi(m[3]); err != nil {
			return IonAnnotation{}, fmt.Errorf("invalid charge in annotation %s: %w", annotation, err)
		}
	}
	return info, nil
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(entry *core.LibraryEntry) {
	var filtered []core.Peak
	for _, peak := range entry.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	entry.Peaks = filtered
}
