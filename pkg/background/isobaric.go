// Package background selects the background peptides a target must be
// distinguished from: those the mass spectrometer co-isolates with it.
package background

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
)

// Isobaric picks, from a fixed peptide population, the peptides whose
// precursor m/z at any configured precursor charge lies within the mass
// accuracy of the target's precursor m/z at the target charge.
type Isobaric struct {
	population   []*core.Peptide
	byMass       []int // population indices ordered by neutral mass
	charges      []int
	targetCharge int
	accuracy     exclusion.MassAccuracy
	logger       *zap.Logger
}

// NewIsobaric indexes population for isobaric lookups.
func NewIsobaric(population []*core.Peptide, precursorCharges []int, targetCharge int, accuracy exclusion.MassAccuracy, logger *zap.Logger) *Isobaric {
	if logger == nil {
		logger = zap.NewNop()
	}
	byMass := make([]int, len(population))
	for i := range byMass {
		byMass[i] = i
	}
	sort.SliceStable(byMass, func(a, b int) bool {
		return population[byMass[a]].PrecursorIon().Mass() < population[byMass[b]].PrecursorIon().Mass()
	})
	return &Isobaric{
		population:   population,
		byMass:       byMass,
		charges:      append([]int(nil), precursorCharges...),
		targetCharge: targetCharge,
		accuracy:     accuracy,
		logger:       logger,
	}
}

// Background returns the co-isolated peptides in population order. Peptides
// with the target's sequence and modifications are never background.
func (s *Isobaric) Background(ctx context.Context, target *core.Peptide) ([]*core.Peptide, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := s.massWindows(target)
	selected := make(map[int]bool)
	for k := range lo {
		from := sort.Search(len(s.byMass), func(i int) bool {
			return s.population[s.byMass[i]].PrecursorIon().Mass() >= lo[k]
		})
		for i := from; i < len(s.byMass); i++ {
			idx := s.byMass[i]
			if s.population[idx].PrecursorIon().Mass() > hi[k] {
				break
			}
			selected[idx] = true
		}
	}

	key := target.Key()
	out := make([]*core.Peptide, 0, len(selected))
	for i, p := range s.population {
		if selected[i] && p != target && p.Key() != key {
			out = append(out, p)
		}
	}
	s.logger.Debug("background selected",
		zap.String("peptide", key),
		zap.Int("background", len(out)))
	return out, nil
}

// massWindows converts the target's precursor m/z window into a neutral
// mass window per background charge state.
func (s *Isobaric) massWindows(target *core.Peptide) (lo, hi []float64) {
	mz := target.PrecursorIon().MassOverCharge(s.targetCharge)
	w := s.accuracy.Window(mz)
	for _, z := range s.charges {
		fz := float64(z)
		lo = append(lo, (mz-w)*fz-fz*core.ProtonMass)
		hi = append(hi, (mz+w)*fz-fz*core.ProtonMass)
	}
	return lo, hi
}
