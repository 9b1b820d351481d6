// Package exclusion computes the interference between a target peptide's
// candidate product ions and a set of background peptides, and scores ion
// combinations against it.
package exclusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

// Settings controls which background ions are compared and how.
type Settings struct {
	BackgroundTypes []core.ProductIonType
	ChargeStates    []int
	Accuracy        MassAccuracy
}

// Validate checks that the settings can produce a matrix.
func (s Settings) Validate() error {
	if len(s.BackgroundTypes) == 0 {
		return errors.New("at least one background product ion type is required")
	}
	for _, t := range s.BackgroundTypes {
		if !t.Valid() {
			return fmt.Errorf("invalid background product ion type %d", int(t))
		}
	}
	if len(s.ChargeStates) == 0 {
		return errors.New("at least one product ion charge state is required")
	}
	for _, z := range s.ChargeStates {
		if z < 1 {
			return fmt.Errorf("product ion charge state must be positive, got %d", z)
		}
	}
	return s.Accuracy.Validate()
}

// Fingerprint is a stable textual identity of the settings.
func (s Settings) Fingerprint() string {
	var b strings.Builder
	for _, t := range core.SortProductIonTypes(s.BackgroundTypes) {
		b.WriteString(t.String())
	}
	b.WriteByte('/')
	charges := append([]int(nil), s.ChargeStates...)
	sort.Ints(charges)
	for _, z := range charges {
		b.WriteString(strconv.Itoa(z))
		b.WriteByte(',')
	}
	b.WriteByte('/')
	b.WriteString(s.Accuracy.String())
	return b.String()
}

// Matrix holds, per (candidate ion, background peptide) pair, the number of
// background product ions within tolerance of the candidate. Rows follow the
// candidate order given at build time, columns the background order.
// A Matrix is immutable once built.
type Matrix struct {
	ions       []*core.ProductIon
	index      map[*core.ProductIon]int
	background []*core.Peptide
	counts     [][]int
	// separation is the nearest background m/z distance in units of the
	// tolerance window; +Inf when the background peptide has no ions.
	separation [][]float64
	settings   Settings
}

// Build computes the exclusion matrix for the candidate ions against the
// background peptides. Candidates must be distinct.
func Build(ctx context.Context, candidates []*core.ProductIon, background []*core.Peptide, s Settings) (*Matrix, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid exclusion settings: %w", err)
	}

	m := &Matrix{
		ions:       append([]*core.ProductIon(nil), candidates...),
		index:      make(map[*core.ProductIon]int, len(candidates)),
		background: append([]*core.Peptide(nil), background...),
		counts:     make([][]int, len(candidates)),
		separation: make([][]float64, len(candidates)),
		settings: Settings{
			BackgroundTypes: core.SortProductIonTypes(s.BackgroundTypes),
			ChargeStates:    append([]int(nil), s.ChargeStates...),
			Accuracy:        s.Accuracy,
		},
	}
	for i, ion := range m.ions {
		if ion == nil {
			return nil, fmt.Errorf("candidate %d is nil", i)
		}
		if _, dup := m.index[ion]; dup {
			return nil, fmt.Errorf("candidate %s listed twice", ion.Label())
		}
		m.index[ion] = i
		m.counts[i] = make([]int, len(background))
		m.separation[i] = make([]float64, len(background))
	}

	for j, peptide := range m.background {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if peptide == nil {
			return nil, fmt.Errorf("background peptide %d is nil", j)
		}
		mzs := backgroundMZs(peptide, m.settings)
		for i, ion := range m.ions {
			m.counts[i][j], m.separation[i][j] = m.interference(ion, mzs)
		}
	}
	return m, nil
}

// backgroundMZs returns the sorted m/z values of a peptide's product ions at
// every configured type and charge.
func backgroundMZs(p *core.Peptide, s Settings) []float64 {
	ions := p.PrecursorIon().ProductIonsOf(s.BackgroundTypes)
	mzs := make([]float64, 0, len(ions)*len(s.ChargeStates))
	for _, ion := range ions {
		for _, z := range s.ChargeStates {
			mzs = append(mzs, ion.MassOverCharge(z))
		}
	}
	sort.Float64s(mzs)
	return mzs
}

// interference counts background m/z values within tolerance of the
// candidate at any charge state, and the nearest normalised separation.
func (m *Matrix) interference(ion *core.ProductIon, mzs []float64) (int, float64) {
	count := 0
	nearest := math.Inf(1)
	for _, z := range m.settings.ChargeStates {
		mz := ion.MassOverCharge(z)
		w := m.settings.Accuracy.Window(mz)

		lo := sort.SearchFloat64s(mzs, mz-w)
		hi := sort.Search(len(mzs), func(i int) bool { return mzs[i] > mz+w })
		count += hi - lo

		p := sort.SearchFloat64s(mzs, mz)
		for _, k := range []int{p - 1, p} {
			if k >= 0 && k < len(mzs) {
				if d := math.Abs(mzs[k]-mz) / w; d < nearest {
					nearest = d
				}
			}
		}
	}
	return count, nearest
}

// Ions returns the candidate ions (the matrix key set) in row order.
func (m *Matrix) Ions() []*core.ProductIon {
	return append([]*core.ProductIon(nil), m.ions...)
}

// Background returns the background peptides in column order.
func (m *Matrix) Background() []*core.Peptide {
	return append([]*core.Peptide(nil), m.background...)
}

// Len returns the number of candidate ions.
func (m *Matrix) Len() int { return len(m.ions) }

// Settings returns the settings the matrix was built with.
func (m *Matrix) Settings() Settings { return m.settings }

// Index returns the row of a candidate ion.
func (m *Matrix) Index(ion *core.ProductIon) (int, bool) {
	i, ok := m.index[ion]
	return i, ok
}

// Count returns the interference count at row i, column j.
func (m *Matrix) Count(i, j int) int { return m.counts[i][j] }

// Separation returns the normalised nearest separation at row i, column j.
func (m *Matrix) Separation(i, j int) float64 { return m.separation[i][j] }

// Interference returns the count for a candidate ion and background peptide.
func (m *Matrix) Interference(ion *core.ProductIon, peptide *core.Peptide) (int, bool) {
	i, ok := m.index[ion]
	if !ok {
		return 0, false
	}
	for j, p := range m.background {
		if p == peptide {
			return m.counts[i][j], true
		}
	}
	return 0, false
}

// TotalInterference sums the counts of a row over all background peptides.
func (m *Matrix) TotalInterference(i int) int {
	total := 0
	for _, c := range m.counts[i] {
		total += c
	}
	return total
}
