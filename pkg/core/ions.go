package core

import (
	"fmt"
	"sort"
	"strings"
)

// ProductIonType classifies a fragment ion series.
type ProductIonType int

const (
	IonA ProductIonType = iota + 1
	IonB
	IonC
	IonX
	IonY
	IonZ
)

var ionTypeNames = map[ProductIonType]string{
	IonA: "a",
	IonB: "b",
	IonC: "c",
	IonX: "x",
	IonY: "y",
	IonZ: "z",
}

// Neutral mass offsets added to the summed residue masses of a fragment.
// z ions are reported without the radical hydrogen.
var ionOffsets = map[ProductIonType]float64{
	IonA: -MassCO,
	IonB: 0,
	IonC: MassAmmonia,
	IonX: MassWater + MassCO - 2*MassH,
	IonY: MassWater,
	IonZ: MassWater - MassAmmonia,
}

// AllProductIonTypes lists every supported series in canonical order.
var AllProductIonTypes = []ProductIonType{IonA, IonB, IonC, IonX, IonY, IonZ}

func (t ProductIonType) String() string {
	if name, ok := ionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ProductIonType(%d)", int(t))
}

// NTerminal reports whether fragments of this series retain the N-terminus.
func (t ProductIonType) NTerminal() bool {
	return t == IonA || t == IonB || t == IonC
}

// Valid reports whether t is one of the supported series.
func (t ProductIonType) Valid() bool {
	_, ok := ionTypeNames[t]
	return ok
}

// ParseProductIonType parses a one-letter series name such as "b" or "Y".
func ParseProductIonType(s string) (ProductIonType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range ionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown product ion type %q", s)
}

// ParseProductIonTypes parses a list of series names and returns them
// de-duplicated in canonical order.
func ParseProductIonTypes(names []string) ([]ProductIonType, error) {
	seen := make(map[ProductIonType]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		t, err := ParseProductIonType(name)
		if err != nil {
			return nil, err
		}
		seen[t] = true
	}
	var out []ProductIonType
	for _, t := range AllProductIonTypes {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out, nil
}

// SortProductIonTypes returns a sorted, de-duplicated copy of types.
func SortProductIonTypes(types []ProductIonType) []ProductIonType {
	seen := make(map[ProductIonType]bool, len(types))
	out := make([]ProductIonType, 0, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ProductIon is an immutable fragment ion of a precursor.
type ProductIon struct {
	typ      ProductIonType
	position int
	sequence string
	mass     float64
}

// NewProductIon creates a product ion from its neutral monoisotopic mass.
// Position is the number of residues in the fragment.
func NewProductIon(t ProductIonType, position int, sequence string, mass float64) *ProductIon {
	return &ProductIon{typ: t, position: position, sequence: sequence, mass: mass}
}

// Type returns the ion series.
func (p *ProductIon) Type() ProductIonType { return p.typ }

// Position returns the fragment length in residues.
func (p *ProductIon) Position() int { return p.position }

// Sequence returns the residues contained in the fragment.
func (p *ProductIon) Sequence() string { return p.sequence }

// Mass returns the neutral monoisotopic mass.
func (p *ProductIon) Mass() float64 { return p.mass }

// MassOverCharge returns the m/z of the ion at charge state z.
func (p *ProductIon) MassOverCharge(z int) float64 {
	return MassOverCharge(p.mass, z)
}

// Label returns the conventional annotation, e.g. "y5".
func (p *ProductIon) Label() string {
	return fmt.Sprintf("%s%d", p.typ, p.position)
}

func (p *ProductIon) String() string {
	return fmt.Sprintf("%s(%.4f)", p.Label(), p.mass)
}

// fragment computes all product ions of the given series for a sequence.
func fragment(sequence string, mods []Modification, t ProductIonType) []*ProductIon {
	residues := []rune(sequence)
	n := len(residues)
	if n < 2 {
		return nil
	}

	// Per-residue masses with site modifications folded in
	masses := make([]float64, n)
	for i, aa := range residues {
		masses[i], _ = ResidueMass(aa)
	}
	var nTerm, cTerm float64
	for _, mod := range mods {
		switch {
		case mod.Position < 0:
			nTerm += mod.Mass
		case mod.Position >= n:
			cTerm += mod.Mass
		default:
			masses[mod.Position] += mod.Mass
		}
	}

	ions := make([]*ProductIon, 0, n-1)
	offset := ionOffsets[t]
	for length := 1; length < n; length++ {
		var start, end int
		mass := offset
		if t.NTerminal() {
			start, end = 0, length
			mass += nTerm
		} else {
			start, end = n-length, n
			mass += cTerm
		}
		for i := start; i < end; i++ {
			mass += masses[i]
		}
		ions = append(ions, NewProductIon(t, length, string(residues[start:end]), mass))
	}
	return ions
}
