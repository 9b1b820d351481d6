package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
	"github.com/nielshulstaert/compomics-sigpep/pkg/scanner"
	"github.com/nielshulstaert/compomics-sigpep/pkg/transition"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("", nil)
	require.NoError(t, err)

	tc, err := c.TransitionConfig()
	require.NoError(t, err)
	assert.Equal(t, transition.DefaultConfig(), tc)
	assert.Equal(t, scanner.FirstMatch, c.ScannerStrategy())
	assert.Equal(t, exclusion.SeparationScorer{}, c.ExclusionScorer())
	assert.Equal(t, 1, c.Lookahead)
	assert.Equal(t, 128, c.CacheSize)
	assert.False(t, c.FilterConfig().Enabled())
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target-types: [b, y]
precursor-charges: [2, 3, 4]
mass-accuracy: 10ppm
max-size: 3
strategy: exhaustive
filter:
  min-mz: 200
  top-n: 6
`), 0o644))

	c, err := Load(path, nil)
	require.NoError(t, err)

	tc, err := c.TransitionConfig()
	require.NoError(t, err)
	assert.Equal(t, []core.ProductIonType{core.IonB, core.IonY}, tc.TargetTypes)
	assert.Equal(t, []int{2, 3, 4}, tc.PrecursorCharges)
	assert.Equal(t, exclusion.PartsPerMillion(10), tc.Accuracy)
	assert.Equal(t, 3, tc.MaxSize)
	assert.Equal(t, scanner.Exhaustive, c.ScannerStrategy())

	fc := c.FilterConfig()
	assert.Equal(t, 200.0, fc.MinMZ)
	assert.Equal(t, 6, fc.TopN)
	assert.True(t, fc.Enabled())
}

func TestLoadMissingSettingsFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max-size: 3\nmin-size: 2\nworkers: 2\n"), 0o644))

	t.Setenv("SIGPEP_MAX_SIZE", "5")
	t.Setenv("SIGPEP_WORKERS", "6")
	t.Setenv("SIGPEP_FILTER_TOP_N", "4")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("workers", 0, "")
	fs.String("strategy", "first-match", "")
	require.NoError(t, fs.Parse([]string{"--workers=8"}))

	c, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, 2, c.MinSize, "settings file")
	assert.Equal(t, 5, c.MaxSize, "env over settings file")
	assert.Equal(t, 8, c.Workers, "flag over env")
	assert.Equal(t, "first-match", c.Strategy, "unchanged flag keeps default")
	assert.Equal(t, 4, c.Filter.TopN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		wantField string
	}{
		{"unknown target type", func(c *Config) { c.TargetTypes = []string{"q"} }, "target-types"},
		{"no target types", func(c *Config) { c.TargetTypes = nil }, "target_types"},
		{"bad accuracy", func(c *Config) { c.MassAccuracy = "wide" }, "mass-accuracy"},
		{"min above max", func(c *Config) { c.MinSize = 5 }, "max_size"},
		{"strategy", func(c *Config) { c.Strategy = "greedy" }, "strategy"},
		{"scorer", func(c *Config) { c.Scorer = "magic" }, "scorer"},
		{"lookahead", func(c *Config) { c.Lookahead = 0 }, "lookahead"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"report precision", func(c *Config) { c.ReportPrecision = -1 }, "report-precision"},
		{"filter cutoff", func(c *Config) { c.Filter.IntensityCutoff = 150 }, "intensity_cutoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load("", nil)
			require.NoError(t, err)
			tt.modify(c)

			err = c.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestLoadBindsFilterFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("top-n", 0, "")
	fs.Float64("cutoff", 0, "")
	fs.Float64("min-mz", 0, "")
	require.NoError(t, fs.Parse([]string{"--top-n=9", "--cutoff=5", "--min-mz=150"}))

	c, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, FilterConfig{MinMZ: 150, TopN: 9, IntensityCutoff: 5}, c.Filter)
}
