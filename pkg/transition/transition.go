// Package transition assembles signature transitions: the product ion
// combinations that identify a target peptide against its background,
// together with the settings they were found under.
package transition

import (
	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
)

// SignatureTransition is an accepted barcode for a target peptide. It is
// immutable; accessors return copies.
type SignatureTransition struct {
	target            *core.Peptide
	barcode           exclusion.Combination
	background        []*core.Peptide
	score             float64
	targetTypes       []core.ProductIonType
	backgroundTypes   []core.ProductIonType
	precursorCharges  []int
	productCharges    []int
	accuracy          exclusion.MassAccuracy
	targetChargeState int
	distribution      map[float64]int
}

func newSignatureTransition(target *core.Peptide, res exclusion.ScoreResult, background []*core.Peptide, cfg Config) *SignatureTransition {
	t := &SignatureTransition{
		target:            target,
		barcode:           append(exclusion.Combination(nil), res.Combination...),
		background:        append([]*core.Peptide(nil), background...),
		score:             res.Score,
		targetTypes:       core.SortProductIonTypes(cfg.TargetTypes),
		backgroundTypes:   core.SortProductIonTypes(cfg.BackgroundTypes),
		precursorCharges:  sortedCopy(cfg.PrecursorCharges),
		productCharges:    sortedCopy(cfg.ProductCharges),
		accuracy:          cfg.Accuracy,
		targetChargeState: cfg.TargetChargeState(),
	}
	t.distribution = massDistribution(t.background, t.backgroundTypes, t.productCharges, cfg.DistributionPrecision)
	return t
}

// massDistribution counts background product ion m/z values, rounded to
// precision decimals, over the given types and charges.
func massDistribution(background []*core.Peptide, types []core.ProductIonType, charges []int, precision int) map[float64]int {
	dist := make(map[float64]int)
	for _, p := range background {
		for _, ion := range p.PrecursorIon().ProductIonsOf(types) {
			for _, z := range charges {
				dist[core.RoundFloat(ion.MassOverCharge(z), precision)]++
			}
		}
	}
	return dist
}

// Target returns the target peptide.
func (t *SignatureTransition) Target() *core.Peptide { return t.target }

// Barcode returns the accepted product ion combination.
func (t *SignatureTransition) Barcode() exclusion.Combination {
	return append(exclusion.Combination(nil), t.barcode...)
}

// Background returns the background peptides the barcode was checked against.
func (t *SignatureTransition) Background() []*core.Peptide {
	return append([]*core.Peptide(nil), t.background...)
}

// Score returns the exclusion score of the barcode.
func (t *SignatureTransition) Score() float64 { return t.score }

// TargetProductIonTypes returns the ion series the barcode was drawn from.
func (t *SignatureTransition) TargetProductIonTypes() []core.ProductIonType {
	return append([]core.ProductIonType(nil), t.targetTypes...)
}

// BackgroundProductIonTypes returns the ion series compared in the background.
func (t *SignatureTransition) BackgroundProductIonTypes() []core.ProductIonType {
	return append([]core.ProductIonType(nil), t.backgroundTypes...)
}

// PrecursorChargeStates returns the precursor charge states considered.
func (t *SignatureTransition) PrecursorChargeStates() []int {
	return append([]int(nil), t.precursorCharges...)
}

// ProductChargeStates returns the product ion charge states considered.
func (t *SignatureTransition) ProductChargeStates() []int {
	return append([]int(nil), t.productCharges...)
}

// MassAccuracy returns the matching tolerance.
func (t *SignatureTransition) MassAccuracy() exclusion.MassAccuracy { return t.accuracy }

// TargetPeptideChargeState returns the precursor charge the target is measured at.
func (t *SignatureTransition) TargetPeptideChargeState() int { return t.targetChargeState }

// BackgroundPrecursorIonSetSize returns the number of background peptides.
func (t *SignatureTransition) BackgroundPrecursorIonSetSize() int { return len(t.background) }

// BackgroundProductIonMassDistribution returns the frequency of each rounded
// background product ion m/z.
func (t *SignatureTransition) BackgroundProductIonMassDistribution() map[float64]int {
	out := make(map[float64]int, len(t.distribution))
	for k, v := range t.distribution {
		out[k] = v
	}
	return out
}

// BarcodeMZs returns the m/z of each barcode ion at charge z.
func (t *SignatureTransition) BarcodeMZs(z int) []float64 {
	out := make([]float64, len(t.barcode))
	for i, ion := range t.barcode {
		out[i] = ion.MassOverCharge(z)
	}
	return out
}

func (t *SignatureTransition) String() string {
	return t.target.Key() + " " + t.barcode.String()
}
