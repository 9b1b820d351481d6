package transition

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
	"github.com/nielshulstaert/compomics-sigpep/pkg/metrics"
	"github.com/nielshulstaert/compomics-sigpep/pkg/scanner"
)

// PeptideFailure records a target whose search failed in a batch.
type PeptideFailure struct {
	Index   int
	Peptide *core.Peptide
	Err     error
}

func (f PeptideFailure) Error() string {
	return fmt.Sprintf("peptide %d (%s): %v", f.Index, f.Peptide, f.Err)
}

func (f PeptideFailure) Unwrap() error { return f.Err }

// BatchResult holds the transitions of a batch in target order, omitting
// targets without one, and the targets that failed.
type BatchResult struct {
	Transitions []*SignatureTransition
	Failures    []PeptideFailure
}

// Finder searches signature transitions for target peptides.
type Finder struct {
	cfg         Config
	scanner     *scanner.Scanner
	cache       *exclusion.Cache
	selector    CandidateSelector
	parallelism int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithCache reuses exclusion matrices across searches.
func WithCache(c *exclusion.Cache) FinderOption {
	return func(f *Finder) { f.cache = c }
}

// WithCandidateSelector narrows each target's candidate ions before the search.
func WithCandidateSelector(s CandidateSelector) FinderOption {
	return func(f *Finder) { f.selector = s }
}

// WithParallelism sets how many targets of a batch are searched at once.
func WithParallelism(n int) FinderOption {
	return func(f *Finder) {
		if n > 0 {
			f.parallelism = n
		}
	}
}

// WithLogger sets the finder logger.
func WithLogger(l *zap.Logger) FinderOption {
	return func(f *Finder) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics records transition and failure counts.
func WithMetrics(m *metrics.Metrics) FinderOption {
	return func(f *Finder) { f.metrics = m }
}

// NewFinder creates a finder running searches on sc.
func NewFinder(cfg Config, sc *scanner.Scanner, opts ...FinderOption) (*Finder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transition config: %w", err)
	}
	if sc == nil {
		return nil, errors.New("a scanner is required")
	}
	f := &Finder{
		cfg:         cfg,
		scanner:     sc,
		parallelism: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Config returns the finder configuration.
func (f *Finder) Config() Config { return f.cfg }

// Candidates returns the target's candidate product ions: its ions of the
// configured target types, narrowed by the candidate selector if any.
func (f *Finder) Candidates(target *core.Peptide) []*core.ProductIon {
	ions := target.PrecursorIon().ProductIonsOf(f.cfg.TargetTypes)
	if f.selector != nil {
		ions = f.selector.Select(target, ions)
	}
	return ions
}

// Find searches a transition for target against background. A target with
// no qualifying combination, or fewer candidate ions than the minimum
// combination size, yields nil and no error.
func (f *Finder) Find(ctx context.Context, target *core.Peptide, background []*core.Peptide) (*SignatureTransition, error) {
	if target == nil {
		return nil, errors.New("target peptide is nil")
	}
	candidates := f.Candidates(target)
	maxSize := min(f.cfg.MaxSize, len(candidates))
	if maxSize < f.cfg.MinSize {
		f.logger.Debug("too few candidate ions",
			zap.String("peptide", target.Key()),
			zap.Int("candidates", len(candidates)),
			zap.Int("min_size", f.cfg.MinSize))
		return nil, nil
	}

	m, err := f.matrix(ctx, candidates, background)
	if err != nil {
		return nil, fmt.Errorf("failed to build exclusion matrix for %s: %w", target.Key(), err)
	}
	results, err := f.scanner.Search(ctx, m, f.cfg.MinSize, maxSize)
	if err != nil {
		return nil, fmt.Errorf("search for %s failed: %w", target.Key(), err)
	}
	if len(results) == 0 {
		f.logger.Debug("no signature transition",
			zap.String("peptide", target.Key()),
			zap.Int("background", len(background)))
		return nil, nil
	}

	t := newSignatureTransition(target, results[0], background, f.cfg)
	f.metrics.TransitionFound()
	f.logger.Debug("signature transition found",
		zap.String("peptide", target.Key()),
		zap.Strings("barcode", t.barcode.Labels()),
		zap.Float64("score", t.score))
	return t, nil
}

func (f *Finder) matrix(ctx context.Context, candidates []*core.ProductIon, background []*core.Peptide) (*exclusion.Matrix, error) {
	if f.cache == nil {
		return exclusion.Build(ctx, candidates, background, f.cfg.Settings())
	}
	m, hit, err := f.cache.Matrix(ctx, candidates, background, f.cfg.Settings())
	if err != nil {
		return nil, err
	}
	f.metrics.CacheLookup(hit)
	return m, nil
}

// FindAll searches every target independently, each against the background
// supplied by src. A failing target is reported in Failures and does not
// stop the others. The error is non-nil only when ctx ends the batch.
func (f *Finder) FindAll(ctx context.Context, targets []*core.Peptide, src BackgroundSource) (BatchResult, error) {
	found := make([]*SignatureTransition, len(targets))
	errs := make([]error, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)
	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if target == nil {
				errs[i] = errors.New("target peptide is nil")
				return nil
			}
			background, err := src.Background(gctx, target)
			if err != nil {
				errs[i] = fmt.Errorf("failed to select background: %w", err)
				return nil
			}
			found[i], errs[i] = f.Find(gctx, target, background)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	var out BatchResult
	for i, target := range targets {
		if errs[i] != nil {
			f.metrics.PeptideFailed()
			f.logger.Warn("peptide search failed", zap.Int("index", i), zap.Error(errs[i]))
			out.Failures = append(out.Failures, PeptideFailure{Index: i, Peptide: target, Err: errs[i]})
			continue
		}
		if found[i] != nil {
			out.Transitions = append(out.Transitions, found[i])
		}
	}
	f.logger.Info("batch finished",
		zap.Int("targets", len(targets)),
		zap.Int("transitions", len(out.Transitions)),
		zap.Int("failures", len(out.Failures)))
	return out, nil
}
