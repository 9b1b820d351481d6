// Package core provides the fragment model used by the signature transition
// search: residue chemistry, peptides, precursor ions and product ions.
package core

import (
	"fmt"
	"math"
)

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	MassWater   = 2*MassH + MassO
	MassAmmonia = MassN + 3*MassH
	MassCO      = MassC + MassO
)

// AminoAcidComposition stores the elemental composition of a residue
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// Mass returns the monoisotopic mass of the composition.
func (c AminoAcidComposition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

// AminoAcidResidues maps amino acid one-letter codes to residue composition
var AminoAcidResidues = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
}

// ResidueMass returns the monoisotopic residue mass of an amino acid.
func ResidueMass(aa rune) (float64, bool) {
	comp, ok := AminoAcidResidues[aa]
	if !ok {
		return 0, false
	}
	return comp.Mass(), true
}

// ValidateSequence reports the first residue without a known composition.
func ValidateSequence(sequence string) error {
	if sequence == "" {
		return fmt.Errorf("empty sequence")
	}
	for i, aa := range sequence {
		if _, ok := AminoAcidResidues[aa]; !ok {
			return fmt.Errorf("unknown residue %q at position %d", aa, i+1)
		}
	}
	return nil
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide.
// Unknown residues contribute nothing; callers validate sequences first.
func CalculateNeutralMass(sequence string, modifications []Modification) float64 {
	mass := MassWater
	for _, aa := range sequence {
		if m, ok := ResidueMass(aa); ok {
			mass += m
		}
	}
	for _, mod := range modifications {
		mass += mod.Mass
	}
	return mass
}

// CalculatePeptideMass computes the monoisotopic m/z of a peptide at the
// given charge state, including modifications.
func CalculatePeptideMass(sequence string, charge int, modifications []Modification) float64 {
	return MassOverCharge(CalculateNeutralMass(sequence, modifications), charge)
}

// MassOverCharge converts a neutral mass to m/z for a positive charge state.
func MassOverCharge(neutralMass float64, charge int) float64 {
	return (neutralMass + float64(charge)*ProtonMass) / float64(charge)
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
