// Package scanner searches the combinations of a target peptide's candidate
// product ions, smallest first, for ones that exclude every background
// peptide in an exclusion matrix.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nielshulstaert/compomics-sigpep/pkg/combination"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
	"github.com/nielshulstaert/compomics-sigpep/pkg/metrics"
	"github.com/nielshulstaert/compomics-sigpep/pkg/workpool"
)

// Strategy selects how much of the combination space a search visits.
type Strategy int

const (
	// FirstMatch stops at the first qualifying combination in enumeration order.
	FirstMatch Strategy = iota
	// Exhaustive scores every combination and returns all qualifying ones.
	Exhaustive
)

func (s Strategy) String() string {
	switch s {
	case FirstMatch:
		return "first-match"
	case Exhaustive:
		return "exhaustive"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "first-match" or "exhaustive".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-match", "firstmatch", "first":
		return FirstMatch, nil
	case "exhaustive", "all":
		return Exhaustive, nil
	default:
		return 0, fmt.Errorf("unknown search strategy %q, must be first-match or exhaustive", s)
	}
}

// ConfigurationError reports search parameters that cannot be satisfied.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid search configuration: %s: %s", e.Field, e.Message)
}

// ScoringError reports a scoring task that failed. It aborts the search.
type ScoringError struct {
	Combination []string
	Err         error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring {%s} failed: %v", strings.Join(e.Combination, ","), e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// Scanner runs combination searches on a shared worker pool.
type Scanner struct {
	strategy  Strategy
	pool      *workpool.Pool
	scorer    exclusion.Scorer
	lookahead int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithScorer sets the scorer used for qualifying combinations.
func WithScorer(s exclusion.Scorer) Option {
	return func(sc *Scanner) {
		if s != nil {
			sc.scorer = s
		}
	}
}

// WithLookahead lets a first-match search keep up to w scoring tasks in
// flight. Results are still committed in enumeration order.
func WithLookahead(w int) Option {
	return func(sc *Scanner) {
		if w > 1 {
			sc.lookahead = w
		}
	}
}

// WithLogger sets the scanner logger.
func WithLogger(l *zap.Logger) Option {
	return func(sc *Scanner) {
		if l != nil {
			sc.logger = l
		}
	}
}

// WithMetrics records combination and search metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(sc *Scanner) { sc.metrics = m }
}

// New creates a scanner submitting work to pool.
func New(strategy Strategy, pool *workpool.Pool, opts ...Option) (*Scanner, error) {
	if strategy != FirstMatch && strategy != Exhaustive {
		return nil, &ConfigurationError{Field: "strategy", Message: strategy.String()}
	}
	if pool == nil {
		return nil, &ConfigurationError{Field: "pool", Message: "a worker pool is required"}
	}
	s := &Scanner{
		strategy:  strategy,
		pool:      pool,
		scorer:    exclusion.SeparationScorer{},
		lookahead: 1,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Strategy returns the configured strategy.
func (s *Scanner) Strategy() Strategy { return s.strategy }

// Search enumerates combinations of the matrix's candidate ions of size
// minSize through maxSize. First-match returns at most one result, of
// minimal size; exhaustive returns every qualifying result ordered by score
// descending, size ascending, then enumeration order. No qualifying
// combination yields an empty result and a nil error.
func (s *Scanner) Search(ctx context.Context, m *exclusion.Matrix, minSize, maxSize int) ([]exclusion.ScoreResult, error) {
	if err := validateSizes(m, minSize, maxSize); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveSearch(s.strategy.String(), time.Since(start).Seconds())
	}()

	var results []exclusion.ScoreResult
	var err error
	switch s.strategy {
	case FirstMatch:
		results, err = s.firstMatch(ctx, m, minSize, maxSize)
	default:
		results, err = s.exhaustive(ctx, m, minSize, maxSize)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search finished",
		zap.Stringer("strategy", s.strategy),
		zap.Int("candidates", m.Len()),
		zap.Int("background", len(m.Background())),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

func validateSizes(m *exclusion.Matrix, minSize, maxSize int) error {
	switch {
	case m == nil:
		return &ConfigurationError{Field: "matrix", Message: "an exclusion matrix is required"}
	case minSize < 1:
		return &ConfigurationError{Field: "minSize", Message: fmt.Sprintf("must be at least 1, got %d", minSize)}
	case minSize > maxSize:
		return &ConfigurationError{Field: "minSize", Message: fmt.Sprintf("%d exceeds maxSize %d", minSize, maxSize)}
	case maxSize > m.Len():
		return &ConfigurationError{Field: "maxSize", Message: fmt.Sprintf("%d exceeds the %d candidate ions", maxSize, m.Len())}
	}
	return nil
}

func (s *Scanner) firstMatch(ctx context.Context, m *exclusion.Matrix, minSize, maxSize int) ([]exclusion.ScoreResult, error) {
	var found []exclusion.ScoreResult
	err := s.run(ctx, m, minSize, maxSize, s.lookahead, func(_ int, r exclusion.ScoreResult) bool {
		if r.Qualified {
			found = []exclusion.ScoreResult{r}
			return true
		}
		return false
	})
	return found, err
}

func (s *Scanner) exhaustive(ctx context.Context, m *exclusion.Matrix, minSize, maxSize int) ([]exclusion.ScoreResult, error) {
	type ranked struct {
		seq int
		res exclusion.ScoreResult
	}
	var all []ranked
	window := max(s.lookahead, 2*s.pool.Workers())
	err := s.run(ctx, m, minSize, maxSize, window, func(seq int, r exclusion.ScoreResult) bool {
		if r.Qualified {
			all = append(all, ranked{seq: seq, res: r})
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.res.Score != b.res.Score {
			return a.res.Score > b.res.Score
		}
		if len(a.res.Combination) != len(b.res.Combination) {
			return len(a.res.Combination) < len(b.res.Combination)
		}
		return a.seq < b.seq
	})
	out := make([]exclusion.ScoreResult, len(all))
	for i, r := range all {
		out[i] = r.res
	}
	return out, nil
}

type pending struct {
	seq    int
	combo  exclusion.Combination
	future *workpool.Future[exclusion.ScoreResult]
}

// run submits combinations in enumeration order, keeping at most window
// tasks in flight, and hands results to visit strictly in that order until
// visit returns true. Unsettled tasks are cancelled on return.
func (s *Scanner) run(ctx context.Context, m *exclusion.Matrix, minSize, maxSize, window int,
	visit func(seq int, r exclusion.ScoreResult) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ions := m.Ions()
	queue := make([]pending, 0, window)
	settle := func(p pending) (bool, error) {
		res, err := p.future.Await(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return true, ctxErr
			}
			return true, &ScoringError{Combination: p.combo.Labels(), Err: err}
		}
		s.metrics.ObserveCombination(s.strategy.String(), res.Qualified)
		return visit(p.seq, res), nil
	}

	seq := 0
	for k := minSize; k <= maxSize; k++ {
		it, err := combination.New(k, ions)
		if err != nil {
			return err
		}
		for it.Next() {
			combo := exclusion.Combination(it.Value())
			fut, err := workpool.Submit(ctx, s.pool, s.task(m, combo))
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return fmt.Errorf("failed to submit combination %s: %w", combo, err)
			}
			queue = append(queue, pending{seq: seq, combo: combo, future: fut})
			seq++

			if len(queue) >= window {
				head := queue[0]
				queue = queue[1:]
				if stop, err := settle(head); stop || err != nil {
					return err
				}
			}
		}
	}
	for _, p := range queue {
		if stop, err := settle(p); stop || err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) task(m *exclusion.Matrix, c exclusion.Combination) func(context.Context) (exclusion.ScoreResult, error) {
	return func(context.Context) (exclusion.ScoreResult, error) {
		return exclusion.Calculate(c, m, s.scorer)
	}
}
