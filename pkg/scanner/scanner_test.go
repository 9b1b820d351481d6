package scanner

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nielshulstaert/compomics-sigpep/internal/testutil"
	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
	"github.com/nielshulstaert/compomics-sigpep/pkg/metrics"
	"github.com/nielshulstaert/compomics-sigpep/pkg/workpool"
)

func newPool(t *testing.T) *workpool.Pool {
	t.Helper()
	p := workpool.New(4)
	t.Cleanup(p.Close)
	return p
}

func matrixFor(t *testing.T, acc float64, target *core.Peptide, background ...*core.Peptide) *exclusion.Matrix {
	t.Helper()
	m, err := exclusion.Build(context.Background(), target.PrecursorIon().ProductIons(core.IonY), background,
		exclusion.Settings{
			BackgroundTypes: []core.ProductIonType{core.IonY},
			ChargeStates:    []int{1},
			Accuracy:        exclusion.Daltons(acc),
		})
	require.NoError(t, err)
	return m
}

func newScanner(t *testing.T, strategy Strategy, opts ...Option) *Scanner {
	t.Helper()
	s, err := New(strategy, newPool(t), opts...)
	require.NoError(t, err)
	return s
}

func comboMZs(r exclusion.ScoreResult) []float64 { return testutil.MZs(r.Combination) }

func TestFirstMatchExample(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 100.10, 200.20, 300.30)
	bg := testutil.PeptideWithMZ("B", 100.10, 400.40)
	m := matrixFor(t, 0.01, target, bg)

	reg := prometheus.NewRegistry()
	s := newScanner(t, FirstMatch, WithMetrics(metrics.New(reg)))

	got, err := s.Search(context.Background(), m, 1, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float64{200.20}, comboMZs(got[0]))
	assert.True(t, got[0].Qualified)

	evaluated, err := promtest.GatherAndCount(reg, "sigpep_combinations_evaluated_total")
	require.NoError(t, err)
	assert.Equal(t, 1, evaluated)
}

func TestIdenticalBackgroundHasNoResult(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 100.10, 200.20, 300.30)
	bg := testutil.PeptideWithMZ("B", 100.10, 200.20, 300.30)
	m := matrixFor(t, 0.01, target, bg)

	for _, strategy := range []Strategy{FirstMatch, Exhaustive} {
		t.Run(strategy.String(), func(t *testing.T) {
			got, err := newScanner(t, strategy).Search(context.Background(), m, 1, 3)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestEmptyBackgroundEverySingleIonQualifies(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 110, 220, 330, 440)
	m := matrixFor(t, 0.5, target)

	got, err := newScanner(t, Exhaustive).Search(context.Background(), m, 1, 1)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, r := range got {
		assert.Equal(t, []float64{[]float64{110, 220, 330, 440}[i]}, comboMZs(r))
	}

	first, err := newScanner(t, FirstMatch).Search(context.Background(), m, 2, 3)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, []float64{110, 220}, comboMZs(first[0]))
}

func TestFirstMatchIsMinimal(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 100, 200, 300, 400)
	bgs := []*core.Peptide{
		testutil.PeptideWithMZ("B1", 100, 450),
		testutil.PeptideWithMZ("B2", 200, 500),
	}
	m := matrixFor(t, 0.01, target, bgs...)

	first, err := newScanner(t, FirstMatch, WithScorer(exclusion.UnitScorer{})).Search(context.Background(), m, 1, 4)
	require.NoError(t, err)
	all, err := newScanner(t, Exhaustive, WithScorer(exclusion.UnitScorer{})).Search(context.Background(), m, 1, 4)
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Equal(t, []float64{300}, comboMZs(first[0]))

	var sets [][]float64
	for _, r := range all {
		sets = append(sets, comboMZs(r))
	}
	if diff := cmp.Diff([][]float64{{300}, {400}, {300, 400}}, sets); diff != "" {
		t.Errorf("qualifying combinations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, comboMZs(first[0]), comboMZs(all[0]))

	// a minimum size above the smallest qualifying size moves the first match up
	first, err = newScanner(t, FirstMatch).Search(context.Background(), m, 2, 4)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, []float64{300, 400}, comboMZs(first[0]))
}

func TestExhaustiveOrdering(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 100, 200, 300)
	bg := testutil.PeptideWithMZ("B", 100.05, 200.3)
	m := matrixFor(t, 0.01, target, bg)

	got, err := newScanner(t, Exhaustive).Search(context.Background(), m, 1, 2)
	require.NoError(t, err)

	var mzs [][]float64
	for _, r := range got {
		mzs = append(mzs, comboMZs(r))
	}
	want := [][]float64{
		{200}, {300}, // ceiling score, size 1
		{200, 300},   // ceiling score, size 2
		{100},        // 5 windows from the background
		{100, 200}, {100, 300},
	}
	if diff := cmp.Diff(want, mzs); diff != "" {
		t.Errorf("exhaustive order mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 101, 202, 303, 404, 505, 606)
	bgs := []*core.Peptide{
		testutil.PeptideWithMZ("B1", 101, 202.002, 606),
		testutil.PeptideWithMZ("B2", 303, 404.004, 505),
		testutil.PeptideWithMZ("B3", 101.3, 505.2),
	}
	m := matrixFor(t, 0.005, target, bgs...)
	s := newScanner(t, Exhaustive)

	a, err := s.Search(context.Background(), m, 1, 4)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		b, err := s.Search(context.Background(), m, 1, 4)
		require.NoError(t, err)
		require.Len(t, b, len(a))
		for j := range a {
			assert.Equal(t, comboMZs(a[j]), comboMZs(b[j]))
			assert.Equal(t, a[j].Score, b[j].Score)
		}
	}
}

func TestLookaheadMatchesSynchronous(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 100, 200, 300, 400, 500, 600)
	bgs := []*core.Peptide{
		testutil.PeptideWithMZ("B1", 100, 200, 300),
		testutil.PeptideWithMZ("B2", 300, 400, 500),
		testutil.PeptideWithMZ("B3", 100, 500),
	}
	m := matrixFor(t, 0.01, target, bgs...)

	want, err := newScanner(t, FirstMatch).Search(context.Background(), m, 1, 6)
	require.NoError(t, err)
	require.Len(t, want, 1)
	assert.Equal(t, []float64{600}, comboMZs(want[0]))
	for _, w := range []int{2, 3, 16} {
		got, err := newScanner(t, FirstMatch, WithLookahead(w)).Search(context.Background(), m, 1, 6)
		require.NoError(t, err)
		require.Len(t, got, 1, "lookahead %d", w)
		assert.Equal(t, comboMZs(want[0]), comboMZs(got[0]), "lookahead %d", w)
	}
}

func TestFullOverlapHasNoResult(t *testing.T) {
	target := testutil.PeptideWithMZ("T", 100, 200, 300)
	bgs := []*core.Peptide{
		testutil.PeptideWithMZ("B1", 100),
		testutil.PeptideWithMZ("B2", 200),
		testutil.PeptideWithMZ("B3", 300),
	}
	m := matrixFor(t, 0.01, target, bgs...)

	got, err := newScanner(t, FirstMatch).Search(context.Background(), m, 1, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchConfigurationErrors(t *testing.T) {
	m := matrixFor(t, 0.5, testutil.PeptideWithMZ("T", 100, 200))
	s := newScanner(t, FirstMatch)

	tests := []struct {
		name     string
		min, max int
		field    string
	}{
		{"zero min", 0, 1, "minSize"},
		{"min above max", 2, 1, "minSize"},
		{"max above candidates", 1, 3, "maxSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(context.Background(), m, tt.min, tt.max)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	_, err := s.Search(context.Background(), nil, 1, 1)
	assert.Error(t, err)

	_, err = New(FirstMatch, nil)
	assert.Error(t, err)
	_, err = New(Strategy(9), newPool(t))
	assert.Error(t, err)
}

func TestScoringFailureAbortsSearch(t *testing.T) {
	m := matrixFor(t, 0.5, testutil.PeptideWithMZ("T", 100, 200, 300))

	nan := exclusion.ScorerFunc(func(*exclusion.Matrix, []int) float64 { return math.NaN() })
	for _, strategy := range []Strategy{FirstMatch, Exhaustive} {
		t.Run(strategy.String(), func(t *testing.T) {
			_, err := newScanner(t, strategy, WithScorer(nan)).Search(context.Background(), m, 1, 2)
			var scoreErr *ScoringError
			require.ErrorAs(t, err, &scoreErr)
			assert.True(t, errors.Is(err, exclusion.ErrInvalidScore))
			assert.Equal(t, []string{"y1"}, scoreErr.Combination)
		})
	}

	panicky := exclusion.ScorerFunc(func(*exclusion.Matrix, []int) float64 { panic("scorer bug") })
	_, err := newScanner(t, FirstMatch, WithScorer(panicky)).Search(context.Background(), m, 1, 1)
	var pe *workpool.PanicError
	assert.ErrorAs(t, err, &pe)
}

func TestSearchHonoursCancellation(t *testing.T) {
	m := matrixFor(t, 0.5, testutil.PeptideWithMZ("T", 100, 200, 300))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner(t, Exhaustive).Search(ctx, m, 1, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"first-match": FirstMatch,
		"":            FirstMatch,
		"Exhaustive":  Exhaustive,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("random")
	assert.Error(t, err)
}

func TestScannerHasNoAdapterImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AdapterImport, "scanner must not depend on I/O adapters")
}
