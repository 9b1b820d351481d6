// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/reader/msp"
	"github.com/nielshulstaert/compomics-sigpep/pkg/reader/sptxt"
)

var (
	// Persistent flags
	settingsFile string
	verbose      bool

	// Library input flags shared by import and summarize
	inputFormat string
	modsCSV     string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sigpep",
	Short: "SigPep - signature transition finder",
	Long: `SigPep finds signature transitions: the smallest sets of product ions that
tell a target peptide apart from every peptide co-isolated with it.

Peptides are imported from spectral libraries (MSP, SPTXT) into a peptide
store, then searched against their isobaric background:
- First-match or exhaustive combination search
- Mass accuracy in Da or ppm
- Candidate filtering by m/z, fragment length and library intensity
- Results written to SQLite with tab-delimited mass-matrix reports`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "YAML settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Development logging at debug level")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve prometheus metrics on this address (e.g. ':9090')")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(summarizeCmd)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = nil
	return cfg.Build()
}

// serveMetrics exposes reg on addr until ctx is done. It returns at once when
// addr is empty.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}

// entryReader is the streaming interface shared by the library readers.
type entryReader interface {
	Next() bool
	Entry() *core.LibraryEntry
	Err() error
}

// detectFormat returns format, or infers it from the file extension.
func detectFormat(path, format string) (string, error) {
	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".msp":
			format = "msp"
		case ".sptxt":
			format = "sptxt"
		default:
			return "", fmt.Errorf("cannot auto-detect format from extension '%s', please specify --from", ext)
		}
	}
	format = strings.ToLower(format)
	if format != "msp" && format != "sptxt" {
		return "", fmt.Errorf("invalid input format '%s', must be msp or sptxt", format)
	}
	return format, nil
}

// loadModDatabase returns the built-in modifications plus those in path.
func loadModDatabase(path string) (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()
	if path == "" {
		return modDB, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modifications CSV: %w", err)
	}
	defer f.Close()
	if err := modDB.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load modifications CSV: %w", err)
	}
	return modDB, nil
}

// openLibrary opens a spectral library for streaming. The caller closes the
// returned file.
func openLibrary(path, format string) (entryReader, *os.File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("input file does not exist: %s", path)
	}
	format, err := detectFormat(path, format)
	if err != nil {
		return nil, nil, err
	}
	modDB, err := loadModDatabase(modsCSV)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	switch format {
	case "msp":
		return msp.NewReader(f, modDB, logger), f, nil
	default:
		return sptxt.NewReader(f, modDB, logger), f, nil
	}
}
