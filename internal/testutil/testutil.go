// Package testutil provides fixtures shared by package tests: peptides with
// hand-picked product ion m/z values, and an import guard for keeping the
// search core free of I/O adapters.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

// IonAt returns a product ion whose singly charged m/z equals mz.
func IonAt(t core.ProductIonType, position int, mz float64) *core.ProductIon {
	return core.NewProductIon(t, position, "", mz-core.ProtonMass)
}

// PeptideWithMZ builds a peptide whose y ions have the given singly charged
// m/z values, in order of position.
func PeptideWithMZ(name string, mzs ...float64) *core.Peptide {
	ions := make([]*core.ProductIon, len(mzs))
	for i, mz := range mzs {
		ions[i] = IonAt(core.IonY, i+1, mz)
	}
	return core.NewPeptideFromIons(name, 1000, ions)
}

// PeptideWithPrecursor builds a peptide with y ions at mzs and the given
// neutral precursor mass.
func PeptideWithPrecursor(name string, precursorMass float64, mzs ...float64) *core.Peptide {
	ions := make([]*core.ProductIon, len(mzs))
	for i, mz := range mzs {
		ions[i] = IonAt(core.IonY, i+1, mz)
	}
	return core.NewPeptideFromIons(name, precursorMass, ions)
}

// MZs returns the singly charged m/z values of ions.
func MZs(ions []*core.ProductIon) []float64 {
	out := make([]float64, len(ions))
	for i, ion := range ions {
		out[i] = core.RoundFloat(ion.MassOverCharge(1), 4)
	}
	return out
}

// AssertNoDirectImports fails if any non-test Go file in dir imports a path
// matching forbidden.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			if forbidden(path) {
				viols = append(viols, fmt.Sprintf("%s imports %s", name, path))
			}
		}
	}
	if len(viols) > 0 {
		t.Fatalf("%s:\n%s", reason, strings.Join(viols, "\n"))
	}
}

// AdapterImport matches packages that perform I/O on behalf of the CLI.
func AdapterImport(path string) bool {
	for _, suffix := range []string{"/pkg/store", "/pkg/writer/sqlite", "/pkg/report", "/pkg/reader/msp", "/pkg/reader/sptxt", "/pkg/config"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.HasPrefix(path, "database/sql") || path == "os"
}
