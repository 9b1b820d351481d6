package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nielshulstaert/compomics-sigpep/pkg/store"
)

var (
	// Flags for summarize command
	summarizeStore   string
	summarizePeptide string
)

func init() {
	summarizeCmd.Flags().StringVarP(&inputFormat, "from", "f", "", "Input format: msp, sptxt (auto-detect if not specified)")
	summarizeCmd.Flags().StringVar(&modsCSV, "mods", "", "Additional modifications CSV (mod,massshift)")
	summarizeCmd.Flags().StringVarP(&summarizeStore, "store", "s", "", "Summarize this peptide store instead of a library file")
	summarizeCmd.Flags().StringVar(&summarizePeptide, "peptide", "", "With --store, list the proteins containing this sequence")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a spectral library or peptide store",
	Long: `Print summary statistics about a spectral library: entry count, valid peptides, charge states, proteins and precursor m/z range.

With --store, summarize a peptide store instead: peptides, proteins and
signature peptides, those found in exactly one protein.

Examples:
  sigpep summarize library.msp
  sigpep summarize --store peptides.db --peptide PEPTIDEK`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if summarizeStore != "" {
			return summarizePeptideStore(cmd.Context(), out)
		}
		if len(args) != 1 {
			return errors.New("give a spectral library file or --store")
		}

		reader, f, err := openLibrary(args[0], inputFormat)
		if err != nil {
			return err
		}
		defer f.Close()

		s := newLibrarySummary()
		for reader.Next() {
			entry := reader.Entry()
			valid := entry.Validate() == nil
			if valid {
				if _, err := entry.Peptide(); err != nil {
					valid = false
				}
			}
			s.add(entry.Charge, entry.Protein, entry.PrecursorMZ, len(entry.Peaks), valid)
		}
		if err := reader.Err(); err != nil {
			return fmt.Errorf("error reading input file: %w", err)
		}
		s.print(out)
		return nil
	},
}

func summarizePeptideStore(ctx context.Context, out io.Writer) error {
	st, err := store.Open(ctx, summarizeStore)
	if err != nil {
		return fmt.Errorf("failed to open peptide store: %w", err)
	}
	defer st.Close()

	peptides, err := st.Count(ctx)
	if err != nil {
		return err
	}
	proteins, err := st.ProteinCount(ctx)
	if err != nil {
		return err
	}
	signature, err := st.SignaturePeptides(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Peptides: %d\n", peptides)
	fmt.Fprintf(out, "Proteins: %d\n", proteins)
	fmt.Fprintf(out, "Signature peptides: %d\n", len(signature))

	if summarizePeptide == "" {
		return nil
	}
	accessions, err := st.ProteinsOf(ctx, summarizePeptide)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Proteins of %s: %s\n", summarizePeptide, strings.Join(accessions, ", "))
	return nil
}

type librarySummary struct {
	entries, valid, peaks int
	charges               map[int]int
	proteins              map[string]bool
	minMZ, maxMZ          float64
}

func newLibrarySummary() *librarySummary {
	return &librarySummary{
		charges:  make(map[int]int),
		proteins: make(map[string]bool),
		minMZ:    math.Inf(1),
		maxMZ:    math.Inf(-1),
	}
}

func (s *librarySummary) add(charge int, protein string, mz float64, peaks int, valid bool) {
	s.entries++
	s.peaks += peaks
	s.charges[charge]++
	if protein != "" {
		s.proteins[protein] = true
	}
	if mz > 0 {
		s.minMZ = math.Min(s.minMZ, mz)
		s.maxMZ = math.Max(s.maxMZ, mz)
	}
	if valid {
		s.valid++
	}
}

func (s *librarySummary) print(w io.Writer) {
	fmt.Fprintf(w, "Entries: %d\n", s.entries)
	fmt.Fprintf(w, "Valid peptides: %d\n", s.valid)
	fmt.Fprintf(w, "Proteins: %d\n", len(s.proteins))
	if s.entries > 0 {
		fmt.Fprintf(w, "Mean peaks per entry: %.1f\n", float64(s.peaks)/float64(s.entries))
	}
	if s.maxMZ >= s.minMZ {
		fmt.Fprintf(w, "Precursor m/z: %.4f - %.4f\n", s.minMZ, s.maxMZ)
	}

	charges := make([]int, 0, len(s.charges))
	for z := range s.charges {
		charges = append(charges, z)
	}
	sort.Ints(charges)
	for _, z := range charges {
		fmt.Fprintf(w, "Charge %d+: %d\n", z, s.charges[z])
	}
}
