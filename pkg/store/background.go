package store

import (
	"context"
	"strings"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
)

// IsobaricSource selects the background of a target from the store: stored
// peptides whose precursor m/z at any of Charges lies within Accuracy of the
// target's precursor m/z at TargetCharge.
type IsobaricSource struct {
	Store        *Store
	Charges      []int
	TargetCharge int
	Accuracy     exclusion.MassAccuracy
}

// Background queries the co-isolated peptides, excluding the target's own
// sequence and modifications.
func (s *IsobaricSource) Background(ctx context.Context, target *core.Peptide) ([]*core.Peptide, error) {
	mz := target.PrecursorIon().MassOverCharge(s.TargetCharge)
	w := s.Accuracy.Window(mz)

	var clauses []string
	var args []any
	for _, z := range s.Charges {
		fz := float64(z)
		clauses = append(clauses, "(neutral_mass >= ? AND neutral_mass <= ?)")
		args = append(args, (mz-w)*fz-fz*core.ProtonMass, (mz+w)*fz-fz*core.ProtonMass)
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	found, err := s.Store.query(ctx, selectPeptides+" WHERE "+strings.Join(clauses, " OR ")+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	key := target.Key()
	out := found[:0]
	for _, p := range found {
		if p.Key() != key {
			out = append(out, p)
		}
	}
	return out, nil
}
