package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nielshulstaert/compomics-sigpep/pkg/background"
	"github.com/nielshulstaert/compomics-sigpep/pkg/config"
	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/exclusion"
	"github.com/nielshulstaert/compomics-sigpep/pkg/metrics"
	"github.com/nielshulstaert/compomics-sigpep/pkg/report"
	"github.com/nielshulstaert/compomics-sigpep/pkg/scanner"
	"github.com/nielshulstaert/compomics-sigpep/pkg/store"
	"github.com/nielshulstaert/compomics-sigpep/pkg/transition"
	"github.com/nielshulstaert/compomics-sigpep/pkg/workpool"
	"github.com/nielshulstaert/compomics-sigpep/pkg/writer/sqlite"
)

var (
	// Flags for find command that are not settings
	findProtein   string
	findOutput    string
	findSummary   string
	findReportDir string
	findInMemory  bool
	findSignature bool
)

func init() {
	f := findCmd.Flags()
	f.StringVar(&findProtein, "protein", "", "Search only the peptides of this protein accession")
	f.StringVarP(&findOutput, "out", "o", "", "Write transitions to this SQLite database")
	f.StringVar(&findSummary, "summary", "", "Write the tab-delimited summary here instead of stdout")
	f.StringVar(&findReportDir, "report-dir", "", "Write one mass-matrix report per transition into this directory")
	f.BoolVar(&findInMemory, "in-memory", false, "Load the whole store and select backgrounds in memory")
	f.BoolVar(&findSignature, "signature-only", false, "Search only signature peptides, those found in exactly one protein")

	// Settings; bound to viper keys of the same name
	f.StringP("store", "s", "", "Peptide store DSN: SQLite path or postgres:// URL")
	f.StringSlice("target-types", []string{"y"}, "Product ion types a barcode is built from")
	f.StringSlice("background-types", []string{"b", "y"}, "Background product ion types")
	f.IntSlice("precursor-charges", []int{2, 3}, "Precursor charge states")
	f.IntSlice("product-charges", []int{1}, "Product ion charge states")
	f.String("mass-accuracy", "0.5Da", "Mass accuracy: '0.5', '0.5Da' or '10ppm'")
	f.Int("min-size", 1, "Smallest barcode")
	f.Int("max-size", 4, "Largest barcode")
	f.String("strategy", scanner.FirstMatch.String(), "Search strategy: first-match or exhaustive")
	f.String("scorer", "separation", "Exclusion scorer: separation or unit")
	f.Int("lookahead", 1, "Combinations scored ahead of the first-match commit point")
	f.Int("workers", 0, "Scoring workers (0 = number of CPUs)")
	f.Int("parallelism", 1, "Peptides searched concurrently")
	f.Int("cache-size", 128, "Exclusion matrices kept in memory (0 = no cache)")
	f.Int("report-precision", report.DefaultPrecision, "Decimals of m/z values in reports")
	f.Float64("min-mz", 0, "Lowest candidate ion m/z (0 = no limit)")
	f.Float64("max-mz", 0, "Highest candidate ion m/z (0 = no limit)")
	f.Int("min-fragment-length", 0, "Shortest candidate fragment")
	f.Int("top-n", 0, "Keep only the N most intense library ions as candidates")
	f.Float64("cutoff", 0, "Drop candidate ions below this % of the most intense library ion")
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find signature transitions for stored peptides",
	Long: `Search every stored peptide (or those of one protein) for a signature
transition against its isobaric background.

Settings come from flags, SIGPEP_* environment variables and the --settings
YAML file, in that order of precedence.

Examples:
  # Search all peptides and print a summary
  sigpep find --store peptides.db

  # Search only peptides unique to one protein of P12345
  sigpep find --store peptides.db --signature-only --protein P12345

  # Exhaustive search at 10 ppm, writing a database and mass-matrix reports
  sigpep find --store peptides.db --strategy exhaustive --mass-accuracy 10ppm \
    --out transitions.db --report-dir reports/`,
	RunE: runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(settingsFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Store == "" {
		return errors.New("no peptide store given, set --store or SIGPEP_STORE")
	}
	tc, err := cfg.TransitionConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open peptide store: %w", err)
	}
	defer st.Close()

	targets, err := selectTargets(ctx, st)
	if err != nil {
		return err
	}

	var src transition.BackgroundSource = &store.IsobaricSource{
		Store:        st,
		Charges:      tc.PrecursorCharges,
		TargetCharge: tc.TargetChargeState(),
		Accuracy:     tc.Accuracy,
	}
	if findInMemory {
		population := targets
		if findProtein != "" || findSignature {
			if population, err = st.All(ctx); err != nil {
				return err
			}
		}
		src = background.NewIsobaric(population, tc.PrecursorCharges, tc.TargetChargeState(), tc.Accuracy, logger)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	serveMetrics(ctx, cfg.MetricsAddr, reg)

	pool := workpool.New(cfg.Workers, workpool.WithLogger(logger))
	defer pool.Close()

	sc, err := scanner.New(cfg.ScannerStrategy(), pool,
		scanner.WithScorer(cfg.ExclusionScorer()),
		scanner.WithLookahead(cfg.Lookahead),
		scanner.WithLogger(logger),
		scanner.WithMetrics(m))
	if err != nil {
		return err
	}

	opts := []transition.FinderOption{
		transition.WithParallelism(cfg.Parallelism),
		transition.WithLogger(logger),
		transition.WithMetrics(m),
	}
	if cfg.CacheSize > 0 {
		cache, err := exclusion.NewCache(cfg.CacheSize)
		if err != nil {
			return err
		}
		opts = append(opts, transition.WithCache(cache))
	}
	if fc := cfg.FilterConfig(); fc.Enabled() {
		opts = append(opts, transition.WithCandidateSelector(fc))
	}
	finder, err := transition.NewFinder(tc, sc, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Searching %d peptides (%s, %s, sizes %d-%d, %d workers)...\n",
		len(targets), sc.Strategy(), tc.Accuracy, tc.MinSize, tc.MaxSize, pool.Workers())

	res, err := finder.FindAll(ctx, targets, src)
	if err != nil {
		return fmt.Errorf("search interrupted: %w", err)
	}
	if err := writeResults(res.Transitions, cfg.ReportPrecision); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nSearch complete!\n")
	fmt.Fprintf(os.Stderr, "Transitions: %d of %d peptides\n", len(res.Transitions), len(targets))
	if len(res.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "Failed: %d peptides\n", len(res.Failures))
		for _, failure := range res.Failures {
			fmt.Fprintf(os.Stderr, "  %v\n", failure)
		}
	}
	if findOutput != "" {
		fmt.Fprintf(os.Stderr, "Output: %s\n", findOutput)
	}
	return nil
}

// selectTargets returns the stored peptides to search, narrowed to one
// protein and to signature peptides when asked.
func selectTargets(ctx context.Context, st *store.Store) ([]*core.Peptide, error) {
	if !findSignature {
		if findProtein != "" {
			return st.ByProtein(ctx, findProtein)
		}
		return st.All(ctx)
	}

	signature, err := st.SignaturePeptides(ctx)
	if err != nil {
		return nil, err
	}
	if findProtein == "" {
		return signature, nil
	}
	targets := signature[:0]
	for _, p := range signature {
		if p.Protein() == findProtein {
			targets = append(targets, p)
		}
	}
	return targets, nil
}

func writeResults(transitions []*transition.SignatureTransition, precision int) error {
	if findOutput != "" {
		w, err := sqlite.NewWriter(findOutput, "sigpep find")
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		defer w.Close()
		for _, t := range transitions {
			if err := w.WriteTransition(t); err != nil {
				return fmt.Errorf("failed to write transition %s: %w", t, err)
			}
		}
		if err := w.Finalize(); err != nil {
			return fmt.Errorf("failed to finalize database: %w", err)
		}
	}

	var out io.Writer = os.Stdout
	if findSummary != "" {
		f, err := os.Create(findSummary)
		if err != nil {
			return fmt.Errorf("failed to create summary: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := report.Summary(out, transitions, precision); err != nil {
		return err
	}

	if findReportDir == "" {
		return nil
	}
	if err := os.MkdirAll(findReportDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	for i, t := range transitions {
		path := filepath.Join(findReportDir, reportName(i, t.Target()))
		if err := writeMassMatrix(path, t, precision); err != nil {
			return err
		}
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func reportName(i int, p *core.Peptide) string {
	return fmt.Sprintf("%04d_%s.tsv", i+1, unsafeFileChars.ReplaceAllString(p.Key(), "_"))
}

func writeMassMatrix(path string, t *transition.SignatureTransition, precision int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := report.MassMatrix(f, t, precision); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return f.Close()
}
