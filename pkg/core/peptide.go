package core

import (
	"fmt"
	"sort"
)

// PrecursorIon is the intact peptide ion and owns its product ions.
type PrecursorIon struct {
	mass float64
	ions map[ProductIonType][]*ProductIon
}

// NewPrecursorIon groups product ions by series, ordered by position.
func NewPrecursorIon(mass float64, ions []*ProductIon) *PrecursorIon {
	p := &PrecursorIon{
		mass: mass,
		ions: make(map[ProductIonType][]*ProductIon),
	}
	for _, ion := range ions {
		p.ions[ion.Type()] = append(p.ions[ion.Type()], ion)
	}
	for _, series := range p.ions {
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Position() < series[j].Position()
		})
	}
	return p
}

// Mass returns the neutral monoisotopic mass.
func (p *PrecursorIon) Mass() float64 { return p.mass }

// MassOverCharge returns the precursor m/z at charge state z.
func (p *PrecursorIon) MassOverCharge(z int) float64 {
	return MassOverCharge(p.mass, z)
}

// ProductIons returns the product ions of one series.
func (p *PrecursorIon) ProductIons(t ProductIonType) []*ProductIon {
	series := p.ions[t]
	out := make([]*ProductIon, len(series))
	copy(out, series)
	return out
}

// ProductIonsOf returns the product ions of several series, series in the
// order given and ions ordered by position within each series.
func (p *PrecursorIon) ProductIonsOf(types []ProductIonType) []*ProductIon {
	var out []*ProductIon
	for _, t := range SortProductIonTypes(types) {
		out = append(out, p.ions[t]...)
	}
	return out
}

// ProductIonTypes returns the series present on this precursor.
func (p *PrecursorIon) ProductIonTypes() []ProductIonType {
	types := make([]ProductIonType, 0, len(p.ions))
	for t := range p.ions {
		types = append(types, t)
	}
	return SortProductIonTypes(types)
}

// Peptide is a modified peptide sequence with its fragment model.
type Peptide struct {
	sequence  string
	mods      []Modification
	protein   string
	precursor *PrecursorIon
	observed  map[string]float64
}

// PeptideOption configures optional peptide metadata.
type PeptideOption func(*Peptide)

// WithProtein records the protein accession the peptide was derived from.
func WithProtein(accession string) PeptideOption {
	return func(p *Peptide) { p.protein = accession }
}

// WithObservedIntensities attaches library fragment intensities keyed by
// ion label (e.g. "y5").
func WithObservedIntensities(intensities map[string]float64) PeptideOption {
	return func(p *Peptide) {
		p.observed = make(map[string]float64, len(intensities))
		for k, v := range intensities {
			p.observed[k] = v
		}
	}
}

// NewPeptide builds a peptide and fragments it into all supported series.
func NewPeptide(sequence string, mods []Modification, opts ...PeptideOption) (*Peptide, error) {
	if err := ValidateSequence(sequence); err != nil {
		return nil, fmt.Errorf("invalid peptide %q: %w", sequence, err)
	}
	n := len([]rune(sequence))
	for _, mod := range mods {
		if mod.Position < -1 || mod.Position > n {
			return nil, fmt.Errorf("invalid peptide %q: modification %s at position %d out of range",
				sequence, mod.Name, mod.Position)
		}
	}

	var ions []*ProductIon
	for _, t := range AllProductIonTypes {
		ions = append(ions, fragment(sequence, mods, t)...)
	}

	p := &Peptide{
		sequence:  sequence,
		mods:      append([]Modification(nil), mods...),
		precursor: NewPrecursorIon(CalculateNeutralMass(sequence, mods), ions),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewPeptideFromIons builds a peptide around an externally supplied
// precursor and product ion graph.
func NewPeptideFromIons(sequence string, precursorMass float64, ions []*ProductIon, opts ...PeptideOption) *Peptide {
	p := &Peptide{
		sequence:  sequence,
		precursor: NewPrecursorIon(precursorMass, ions),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sequence returns the unmodified residue sequence.
func (p *Peptide) Sequence() string { return p.sequence }

// Modifications returns a copy of the peptide modifications.
func (p *Peptide) Modifications() []Modification {
	return append([]Modification(nil), p.mods...)
}

// Protein returns the source protein accession, if known.
func (p *Peptide) Protein() string { return p.protein }

// PrecursorIon returns the precursor ion.
func (p *Peptide) PrecursorIon() *PrecursorIon { return p.precursor }

// ObservedIntensity returns the library intensity recorded for an ion label.
func (p *Peptide) ObservedIntensity(label string) (float64, bool) {
	v, ok := p.observed[label]
	return v, ok
}

// ObservedIntensities returns a copy of the library intensities by ion label.
func (p *Peptide) ObservedIntensities() map[string]float64 {
	if len(p.observed) == 0 {
		return nil
	}
	out := make(map[string]float64, len(p.observed))
	for k, v := range p.observed {
		out[k] = v
	}
	return out
}

// HasObservedIntensities reports whether library intensities are attached.
func (p *Peptide) HasObservedIntensities() bool { return len(p.observed) > 0 }

// Key identifies a peptide by sequence and modifications.
func (p *Peptide) Key() string {
	if len(p.mods) == 0 {
		return p.sequence
	}
	return p.sequence + "|" + ModString(p.mods)
}

func (p *Peptide) String() string { return p.Key() }
