package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

const library = `Name: PEPTIDEK/2
Comment: Protein=P1
Num peaks: 2
147.1128	1000	"y1"
276.1554	2500	"y2"

Name: EPTIDEPK/2
Comment: Protein=P2
Num peaks: 1
147.1128	1000	"y1"

Name: ELVISK/2
Comment: Protein=P1
Num peaks: 1
147.1128	10	"y1"

Name: PEPTIDEB/2
Num peaks: 0
`

func run(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	require.NoError(t, Execute())
}

func TestImportAndFind(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "library.msp")
	require.NoError(t, os.WriteFile(lib, []byte(library), 0o644))
	storePath := filepath.Join(dir, "peptides.db")
	outPath := filepath.Join(dir, "transitions.db")
	summaryPath := filepath.Join(dir, "summary.tsv")
	reportDir := filepath.Join(dir, "reports")

	run(t, "import", "--in", lib, "--store", storePath)
	run(t, "find", "--store", storePath, "--out", outPath, "--summary", summaryPath,
		"--report-dir", reportDir, "--workers", "2", "--max-size", "2")

	summary, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(summary), "\n"), "\n")
	require.Len(t, lines, 4, "header plus one row per valid peptide")
	assert.True(t, strings.HasPrefix(lines[1], "PEPTIDEK\tP1\t2\t"))
	assert.True(t, strings.HasPrefix(lines[2], "EPTIDEPK\tP2\t2\t"))
	assert.True(t, strings.HasPrefix(lines[3], "ELVISK\tP1\t2\t"))

	db, err := sql.Open("sqlite3", outPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM TransitionTable").Scan(&n))
	assert.Equal(t, 3, n)

	reports, err := os.ReadDir(reportDir)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "0001_PEPTIDEK.tsv", reports[0].Name())
}

const sharedLibrary = `Name: PEPTIDEK/2
Comment: Protein=P1
Num peaks: 1
147.1128	1000	"y1"

Name: PEPTIDEK/2
Comment: Protein=P2
Num peaks: 1
147.1128	1000	"y1"

Name: ELVISK/2
Comment: Protein=P1
Num peaks: 1
147.1128	10	"y1"
`

// resetFindFlags clears find and summarize flags left over from earlier runs.
func resetFindFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		findProtein, findOutput, findSummary, findReportDir = "", "", "", ""
		findInMemory, findSignature = false, false
		summarizeStore, summarizePeptide = "", ""
		rootCmd.SetOut(nil)
	}
	reset()
	t.Cleanup(reset)
}

func TestSignatureOnlyFindAndStoreSummary(t *testing.T) {
	resetFindFlags(t)
	dir := t.TempDir()
	lib := filepath.Join(dir, "shared.msp")
	require.NoError(t, os.WriteFile(lib, []byte(sharedLibrary), 0o644))
	storePath := filepath.Join(dir, "peptides.db")
	summaryPath := filepath.Join(dir, "summary.tsv")

	run(t, "import", "--in", lib, "--store", storePath)
	run(t, "find", "--store", storePath, "--summary", summaryPath, "--signature-only")

	summary, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(summary), "\n"), "\n")
	require.Len(t, lines, 2, "PEPTIDEK is shared by two proteins")
	assert.True(t, strings.HasPrefix(lines[1], "ELVISK\tP1\t2\t"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	run(t, "summarize", "--store", storePath, "--peptide", "PEPTIDEK")
	assert.Equal(t, "Peptides: 3\nProteins: 2\nSignature peptides: 1\nProteins of PEPTIDEK: P1, P2\n", out.String())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path, format, want string
		wantErr            bool
	}{
		{"lib.msp", "", "msp", false},
		{"lib.SPTXT", "", "sptxt", false},
		{"lib.txt", "MSP", "msp", false},
		{"lib.blib", "", "", true},
		{"lib.msp", "blib", "", true},
	}
	for _, tt := range tests {
		got, err := detectFormat(tt.path, tt.format)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got)
	}
}

func TestReportName(t *testing.T) {
	p, err := core.NewPeptide("PEPMK", []core.Modification{{Mass: 15.994915, Position: 3, Name: "Oxidation"}})
	require.NoError(t, err)
	name := reportName(11, p)
	assert.True(t, strings.HasPrefix(name, "0012_PEPMK_"))
	assert.NotContains(t, name, "|")
	assert.True(t, strings.HasSuffix(name, ".tsv"))
}
