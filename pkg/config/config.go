// Package config holds the settings of a signature transition search,
// unmarshalled by viper from defaults, an optional YAML settings file,
// SIGPEP_* environment variables and command line flags.
package config

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
	"github.com/nielshulstaert/compomics-sigpep/pkg/filter"
	"github.com/nielshulstaert/compomics-sigpep/pkg/scanner"
	"github.com/nielshulstaert/compomics-sigpep/pkg/transition"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SIGPEP"

// ValidationError reports an invalid setting.
type ValidationError = core.ValidationError

// FilterConfig narrows the candidate ions of each target.
type FilterConfig struct {
	// lowest and highest singly charged m/z kept, 0 disables
	MinMZ float64 `mapstructure:"min-mz"`
	MaxMZ float64 `mapstructure:"max-mz"`

	// shortest fragment kept
	MinFragmentLength int `mapstructure:"min-fragment-length"`

	// keep the N most intense library ions
	TopN int `mapstructure:"top-n"`

	// percentage of the most intense library ion below which ions are dropped
	IntensityCutoff float64 `mapstructure:"intensity-cutoff"`
}

// Config is the root-level settings struct
type Config struct {
	TargetTypes      []string `mapstructure:"target-types"`
	BackgroundTypes  []string `mapstructure:"background-types"`
	PrecursorCharges []int    `mapstructure:"precursor-charges"`
	ProductCharges   []int    `mapstructure:"product-charges"`

	// "0.5", "0.5Da" or "10ppm"
	MassAccuracy string `mapstructure:"mass-accuracy"`

	MinSize int `mapstructure:"min-size"`
	MaxSize int `mapstructure:"max-size"`

	// first-match or exhaustive
	Strategy string `mapstructure:"strategy"`
	// separation or unit
	Scorer    string `mapstructure:"scorer"`
	Lookahead int    `mapstructure:"lookahead"`

	// scoring workers; 0 uses every CPU
	Workers int `mapstructure:"workers"`
	// peptides searched concurrently in a batch
	Parallelism int `mapstructure:"parallelism"`
	// exclusion matrices kept in memory, 0 disables the cache
	CacheSize int `mapstructure:"cache-size"`

	DistributionPrecision int `mapstructure:"distribution-precision"`
	ReportPrecision       int `mapstructure:"report-precision"`

	// peptide store DSN: a SQLite path or a postgres:// URL
	Store string `mapstructure:"store"`

	Filter FilterConfig `mapstructure:"filter"`

	MetricsAddr string `mapstructure:"metrics-addr"`
	Verbose     bool   `mapstructure:"verbose"`
}

// flagBindings maps nested viper keys to the flag names that set them.
var flagBindings = map[string]string{
	"filter.min-mz":              "min-mz",
	"filter.max-mz":              "max-mz",
	"filter.min-fragment-length": "min-fragment-length",
	"filter.top-n":               "top-n",
	"filter.intensity-cutoff":    "cutoff",
}

// SetDefaults registers the default settings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target-types", []string{"y"})
	v.SetDefault("background-types", []string{"b", "y"})
	v.SetDefault("precursor-charges", []int{2, 3})
	v.SetDefault("product-charges", []int{1})
	v.SetDefault("mass-accuracy", "0.5Da")
	v.SetDefault("min-size", 1)
	v.SetDefault("max-size", 4)
	v.SetDefault("strategy", scanner.FirstMatch.String())
	v.SetDefault("scorer", "separation")
	v.SetDefault("lookahead", 1)
	v.SetDefault("workers", 0)
	v.SetDefault("parallelism", 1)
	v.SetDefault("cache-size", 128)
	v.SetDefault("distribution-precision", 2)
	v.SetDefault("report-precision", 4)
	v.SetDefault("store", "")
	v.SetDefault("filter.min-mz", 0.0)
	v.SetDefault("filter.max-mz", 0.0)
	v.SetDefault("filter.min-fragment-length", 0)
	v.SetDefault("filter.top-n", 0)
	v.SetDefault("filter.intensity-cutoff", 0.0)
	v.SetDefault("metrics-addr", "")
	v.SetDefault("verbose", false)
}

// Load builds a Config. Precedence: flags > env > settings file > defaults.
// settingsPath and flags may be empty or nil.
func Load(settingsPath string, flags *flag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if settingsPath != "" {
		v.SetConfigFile(settingsPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", settingsPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every setting, including those only checked downstream.
func (c *Config) Validate() error {
	if _, err := c.TransitionConfig(); err != nil {
		return err
	}
	if _, err := scanner.ParseStrategy(c.Strategy); err != nil {
		return &ValidationError{Field: "strategy", Message: err.Error()}
	}
	if _, err := exclusion.ParseScorer(c.Scorer); err != nil {
		return &ValidationError{Field: "scorer", Message: err.Error()}
	}
	if c.Lookahead < 1 {
		return &ValidationError{Field: "lookahead", Message: fmt.Sprintf("must be at least 1, got %d", c.Lookahead)}
	}
	if c.Workers < 0 || c.Parallelism < 0 || c.CacheSize < 0 {
		return &ValidationError{Field: "workers", Message: "workers, parallelism and cache size must not be negative"}
	}
	if c.ReportPrecision < 0 {
		return &ValidationError{Field: "report-precision", Message: "must not be negative"}
	}
	return c.FilterConfig().Validate()
}

// TransitionConfig converts the search settings.
func (c *Config) TransitionConfig() (transition.Config, error) {
	targets, err := core.ParseProductIonTypes(c.TargetTypes)
	if err != nil {
		return transition.Config{}, &ValidationError{Field: "target-types", Message: err.Error()}
	}
	backgrounds, err := core.ParseProductIonTypes(c.BackgroundTypes)
	if err != nil {
		return transition.Config{}, &ValidationError{Field: "background-types", Message: err.Error()}
	}
	acc, err := exclusion.ParseMassAccuracy(c.MassAccuracy)
	if err != nil {
		return transition.Config{}, &ValidationError{Field: "mass-accuracy", Message: err.Error()}
	}
	tc := transition.Config{
		TargetTypes:           targets,
		BackgroundTypes:       backgrounds,
		PrecursorCharges:      append([]int(nil), c.PrecursorCharges...),
		ProductCharges:        append([]int(nil), c.ProductCharges...),
		Accuracy:              acc,
		MinSize:               c.MinSize,
		MaxSize:               c.MaxSize,
		DistributionPrecision: c.DistributionPrecision,
	}
	if err := tc.Validate(); err != nil {
		return transition.Config{}, err
	}
	return tc, nil
}

// FilterConfig converts the candidate filter settings.
func (c *Config) FilterConfig() *filter.Config {
	return &filter.Config{
		MinMZ:             c.Filter.MinMZ,
		MaxMZ:             c.Filter.MaxMZ,
		MinFragmentLength: c.Filter.MinFragmentLength,
		TopN:              c.Filter.TopN,
		IntensityCutoff:   c.Filter.IntensityCutoff,
	}
}

// ScannerStrategy returns the configured enumeration strategy.
func (c *Config) ScannerStrategy() scanner.Strategy {
	s, _ := scanner.ParseStrategy(c.Strategy)
	return s
}

// ExclusionScorer returns the configured scorer.
func (c *Config) ExclusionScorer() exclusion.Scorer {
	s, _ := exclusion.ParseScorer(c.Scorer)
	if s == nil {
		return exclusion.SeparationScorer{}
	}
	return s
}
