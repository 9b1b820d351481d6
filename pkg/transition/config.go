package transition

import (
	"fmt"
	"sort"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
)

// Config holds the search settings recorded on every transition.
// MaxSize is an upper bound: a target with fewer candidate ions is searched
// up to its candidate count instead of failing.
type Config struct {
	TargetTypes      []core.ProductIonType
	BackgroundTypes  []core.ProductIonType
	PrecursorCharges []int
	ProductCharges   []int
	Accuracy         exclusion.MassAccuracy
	MinSize          int
	MaxSize          int
	// DistributionPrecision is the number of decimals background m/z values
	// are rounded to in the mass distribution.
	DistributionPrecision int
}

// DefaultConfig returns y-ion barcodes against b and y background ions,
// precursors at 2+ and 3+, singly charged products, 0.5 Da and sizes 1 to 4.
func DefaultConfig() Config {
	return Config{
		TargetTypes:           []core.ProductIonType{core.IonY},
		BackgroundTypes:       []core.ProductIonType{core.IonB, core.IonY},
		PrecursorCharges:      []int{2, 3},
		ProductCharges:        []int{1},
		Accuracy:              exclusion.Daltons(0.5),
		MinSize:               1,
		MaxSize:               4,
		DistributionPrecision: 2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.TargetTypes) == 0 {
		return &core.ValidationError{Field: "target_types", Message: "at least one target product ion type is required"}
	}
	for _, t := range c.TargetTypes {
		if !t.Valid() {
			return &core.ValidationError{Field: "target_types", Message: fmt.Sprintf("invalid product ion type %d", int(t))}
		}
	}
	if len(c.PrecursorCharges) == 0 {
		return &core.ValidationError{Field: "precursor_charges", Message: "at least one precursor charge state is required"}
	}
	for _, z := range c.PrecursorCharges {
		if z < 1 {
			return &core.ValidationError{Field: "precursor_charges", Message: fmt.Sprintf("charge must be positive, got %d", z)}
		}
	}
	if c.MinSize < 1 {
		return &core.ValidationError{Field: "min_size", Message: fmt.Sprintf("must be at least 1, got %d", c.MinSize)}
	}
	if c.MaxSize < c.MinSize {
		return &core.ValidationError{Field: "max_size", Message: fmt.Sprintf("%d is below min_size %d", c.MaxSize, c.MinSize)}
	}
	if c.DistributionPrecision < 0 {
		return &core.ValidationError{Field: "distribution_precision", Message: "must not be negative"}
	}
	if err := c.Settings().Validate(); err != nil {
		return &core.ValidationError{Field: "exclusion", Message: err.Error()}
	}
	return nil
}

// Settings returns the exclusion matrix settings.
func (c Config) Settings() exclusion.Settings {
	return exclusion.Settings{
		BackgroundTypes: c.BackgroundTypes,
		ChargeStates:    c.ProductCharges,
		Accuracy:        c.Accuracy,
	}
}

// TargetChargeState is the lowest configured precursor charge state.
func (c Config) TargetChargeState() int {
	if len(c.PrecursorCharges) == 0 {
		return 0
	}
	return sortedCopy(c.PrecursorCharges)[0]
}

func sortedCopy(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}
