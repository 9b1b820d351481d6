package transition

import (
	"context"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

// BackgroundSource supplies the background peptides for a target.
type BackgroundSource interface {
	Background(ctx context.Context, target *core.Peptide) ([]*core.Peptide, error)
}

// StaticBackground uses the same peptides for every target, minus the
// target and any peptide with its sequence and modifications.
type StaticBackground []*core.Peptide

// Background returns the peptides other than target.
func (s StaticBackground) Background(_ context.Context, target *core.Peptide) ([]*core.Peptide, error) {
	key := target.Key()
	out := make([]*core.Peptide, 0, len(s))
	for _, p := range s {
		if p != target && p.Key() != key {
			out = append(out, p)
		}
	}
	return out, nil
}

// CandidateSelector narrows the candidate ions of a target peptide. It must
// return a subset of ions, preserving order.
type CandidateSelector interface {
	Select(target *core.Peptide, ions []*core.ProductIon) []*core.ProductIon
}
