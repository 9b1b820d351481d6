package exclusion

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

var (
	// ErrUnknownIon is returned when a combination member is not a matrix key.
	ErrUnknownIon = errors.New("product ion not in exclusion matrix")
	// ErrInvalidScore is returned when a scorer produces NaN or Inf.
	ErrInvalidScore = errors.New("scorer returned a non-finite score")
	// ErrEmptyCombination is returned for a combination without members.
	ErrEmptyCombination = errors.New("empty combination")
)

// Combination is a set of candidate product ions, ordered by matrix row.
type Combination []*core.ProductIon

// Labels returns the ion labels in order.
func (c Combination) Labels() []string {
	out := make([]string, len(c))
	for i, ion := range c {
		out[i] = ion.Label()
	}
	return out
}

func (c Combination) String() string {
	return "{" + strings.Join(c.Labels(), ",") + "}"
}

// ScoreResult is the outcome of scoring one combination. An unqualified
// result is empty: it carries the combination but no score.
type ScoreResult struct {
	Combination Combination
	Score       float64
	Qualified   bool
}

// Empty reports whether the combination failed to discriminate.
func (r ScoreResult) Empty() bool { return !r.Qualified }

// Scorer assigns a finite score to a qualifying combination, given as matrix
// rows. Scores must not increase with total interference; higher is better.
type Scorer interface {
	Score(m *Matrix, rows []int) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(m *Matrix, rows []int) float64

// Score calls f.
func (f ScorerFunc) Score(m *Matrix, rows []int) float64 { return f(m, rows) }

// UnitScorer gives every qualifying combination the same score.
type UnitScorer struct{}

// Score returns 1.
func (UnitScorer) Score(*Matrix, []int) float64 { return 1 }

// DefaultSeparationCeiling caps separation scores, in tolerance windows.
const DefaultSeparationCeiling = 10.0

// SeparationScorer scores a combination by how far, in tolerance windows,
// its closest member sits from any background ion. Calculate only scores
// qualifying combinations, so no member interferes.
type SeparationScorer struct {
	Ceiling float64
}

// Score returns the capped minimum separation over members and background peptides.
func (s SeparationScorer) Score(m *Matrix, rows []int) float64 {
	ceiling := s.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultSeparationCeiling
	}
	score := ceiling
	for _, r := range rows {
		for j := range m.background {
			if sep := m.Separation(r, j); sep < score {
				score = sep
			}
		}
	}
	return score
}

// ParseScorer returns the scorer registered under name.
func ParseScorer(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "separation":
		return SeparationScorer{}, nil
	case "unit":
		return UnitScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown scorer %q, must be separation or unit", name)
	}
}

// Calculate scores a combination against the matrix. The combination
// qualifies only if, for every background peptide, all members have zero
// interference. It reads only its inputs and is safe for concurrent use.
func Calculate(c Combination, m *Matrix, s Scorer) (ScoreResult, error) {
	if len(c) == 0 {
		return ScoreResult{}, ErrEmptyCombination
	}
	rows := make([]int, len(c))
	for i, ion := range c {
		r, ok := m.Index(ion)
		if !ok {
			return ScoreResult{}, fmt.Errorf("%w: %v", ErrUnknownIon, ion)
		}
		rows[i] = r
	}

	for j := range m.background {
		for _, r := range rows {
			if m.counts[r][j] > 0 {
				return ScoreResult{Combination: c}, nil
			}
		}
	}

	if s == nil {
		s = SeparationScorer{}
	}
	score := s.Score(m, rows)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return ScoreResult{}, fmt.Errorf("%w for %s: %v", ErrInvalidScore, c, score)
	}
	return ScoreResult{Combination: c, Score: score, Qualified: true}, nil
}
