// Package report renders signature transitions as tab-delimited tables.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/transition"
)

// DefaultPrecision is the number of decimals m/z values are rounded to.
const DefaultPrecision = 4

// Row kinds of a mass matrix.
const (
	RowBarcode    = "bc"
	RowTarget     = "tg"
	RowBackground = "bg"
)

// MassMatrix writes the m/z layout of one transition: a barcode row, one row
// per target ion type and one row per background peptide and background ion
// type. Each row lists every ion at every product charge state.
func MassMatrix(w io.Writer, t *transition.SignatureTransition, precision int) error {
	tw := newTabWriter(w)
	charges := t.ProductChargeStates()

	row := []string{RowBarcode, ""}
	row = appendMZs(row, t.Barcode(), charges, precision)
	if err := tw.Write(row); err != nil {
		return fmt.Errorf("write barcode row: %w", err)
	}

	target := t.Target().PrecursorIon()
	for _, typ := range t.TargetProductIonTypes() {
		row := appendMZs([]string{RowTarget, typ.String()}, target.ProductIons(typ), charges, precision)
		if err := tw.Write(row); err != nil {
			return fmt.Errorf("write target row: %w", err)
		}
	}

	for _, p := range t.Background() {
		for _, typ := range t.BackgroundProductIonTypes() {
			row := appendMZs([]string{RowBackground, typ.String()}, p.PrecursorIon().ProductIons(typ), charges, precision)
			if err := tw.Write(row); err != nil {
				return fmt.Errorf("write background row for %s: %w", p.Key(), err)
			}
		}
	}

	tw.Flush()
	return tw.Error()
}

// summaryHeader names the columns written by Summary.
var summaryHeader = []string{"peptide", "protein", "charge", "precursor_mz", "barcode", "barcode_mz", "score", "background"}

// Summary writes one row per transition with a header line.
func Summary(w io.Writer, transitions []*transition.SignatureTransition, precision int) error {
	tw := newTabWriter(w)
	if err := tw.Write(summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, t := range transitions {
		z := t.TargetPeptideChargeState()
		mzs := ""
		for i, mz := range t.BarcodeMZs(1) {
			if i > 0 {
				mzs += ","
			}
			mzs += formatMZ(mz, precision)
		}
		row := []string{
			t.Target().Key(),
			t.Target().Protein(),
			strconv.Itoa(z),
			formatMZ(t.Target().PrecursorIon().MassOverCharge(z), precision),
			t.Barcode().String(),
			mzs,
			strconv.FormatFloat(t.Score(), 'f', -1, 64),
			strconv.Itoa(t.BackgroundPrecursorIonSetSize()),
		}
		if err := tw.Write(row); err != nil {
			return fmt.Errorf("write summary row for %s: %w", t.Target().Key(), err)
		}
	}
	tw.Flush()
	return tw.Error()
}

func newTabWriter(w io.Writer) *csv.Writer {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'
	return tw
}

func appendMZs(row []string, ions []*core.ProductIon, charges []int, precision int) []string {
	for _, ion := range ions {
		for _, z := range charges {
			row = append(row, formatMZ(ion.MassOverCharge(z), precision))
		}
	}
	return row
}

func formatMZ(mz float64, precision int) string {
	return strconv.FormatFloat(core.RoundFloat(mz, precision), 'f', -1, 64)
}
