package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/filter"
	"github.com/nielshulstaert/compomics-sigpep/pkg/store"
)

var (
	// Flags for import command
	importInput   string
	importStore   string
	importTopN    int
	importCutoff  float64
	importIons    string
	importChunk   int
	importProtein string
)

func init() {
	importCmd.Flags().StringVarP(&importInput, "in", "i", "", "Spectral library path (required)")
	importCmd.Flags().StringVarP(&inputFormat, "from", "f", "", "Input format: msp, sptxt (auto-detect if not specified)")
	importCmd.Flags().StringVarP(&importStore, "store", "s", "", "Peptide store DSN: SQLite path or postgres:// URL (required)")
	importCmd.Flags().StringVar(&modsCSV, "mods", "", "Additional modifications CSV (mod,massshift)")
	importCmd.Flags().IntVar(&importTopN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	importCmd.Flags().Float64Var(&importCutoff, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	importCmd.Flags().StringVar(&importIons, "ion-types", "", "Comma-separated ion types to keep (e.g., 'b,y')")
	importCmd.Flags().IntVar(&importChunk, "chunk-size", 10000, "Peptides inserted per transaction")
	importCmd.Flags().StringVar(&importProtein, "protein", "", "Protein accession for entries that carry none")

	importCmd.MarkFlagRequired("in")
	importCmd.MarkFlagRequired("store")
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a spectral library into the peptide store",
	Long: `Import peptides from an MSP or SPTXT spectral library into a peptide store.
Annotated fragment intensities are kept for intensity-based candidate filtering.

Examples:
  # Import an MSP library into a local SQLite store
  sigpep import --in library.msp --store peptides.db

  # Import into PostgreSQL keeping the 20 most intense b and y peaks
  sigpep import --in library.sptxt --store postgres://localhost/sigpep --top-n 20 --ion-types b,y`,
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if importChunk < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", importChunk)
	}
	peakFilter := &filter.Config{TopN: importTopN, IntensityCutoff: importCutoff}
	if importIons != "" {
		for _, t := range strings.Split(importIons, ",") {
			peakFilter.IonTypes = append(peakFilter.IonTypes, strings.TrimSpace(t))
		}
	}
	if err := peakFilter.Validate(); err != nil {
		return err
	}

	reader, f, err := openLibrary(importInput, inputFormat)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := store.Open(ctx, importStore)
	if err != nil {
		return fmt.Errorf("failed to open peptide store: %w", err)
	}
	defer st.Close()

	fmt.Printf("Importing %s into %s store...\n", importInput, st.Driver())

	count := 0
	skipped := 0
	batch := make([]*core.Peptide, 0, importChunk)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := st.Insert(ctx, batch...); err != nil {
			return err
		}
		count += len(batch)
		batch = batch[:0]
		fmt.Printf("Imported %d peptides...\n", count)
		return nil
	}

	for reader.Next() {
		entry := reader.Entry()
		if entry.Protein == "" {
			entry.Protein = importProtein
		}

		filter.RemoveZeroIntensityPeaks(entry)
		peakFilter.Apply(entry)

		if err := entry.Validate(); err != nil {
			logger.Warn("invalid library entry", zap.String("entry", entry.Name()), zap.Error(err))
			skipped++
			continue
		}
		p, err := entry.Peptide()
		if err != nil {
			logger.Warn("cannot build peptide", zap.String("entry", entry.Name()), zap.Error(err))
			skipped++
			continue
		}

		batch = append(batch, p)
		if len(batch) == importChunk {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	total, err := st.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Imported: %d peptides\n", count)
	if skipped > 0 {
		fmt.Printf("Skipped: %d entries (validation errors)\n", skipped)
	}
	fmt.Printf("Store now holds %d peptides\n", total)
	return nil
}
