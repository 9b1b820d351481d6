package msp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

const library = `Name: PEPTIDEK/2
MW: 927.46
Comment: Parent=464.74 Protein=sp|P12345|TEST_HUMAN iRT=42.5 ModString=PEPTIDEK//Oxidation@8/2
Num peaks: 3
147.1128	1000	"y1/0.1ppm"
244.1656	2500	"y2/0.2ppm"
227.1026	800	"b2"

Name: ELVISK/1
Comment: Parent=688.41
Num peaks: 2
147.1128	10
260.1969	20	"y2^2,y2-H2O"
`

func readAll(t *testing.T, in string) []*core.LibraryEntry {
	t.Helper()
	r := NewReader(strings.NewReader(in), nil, nil)
	var entries []*core.LibraryEntry
	for r.Next() {
		entries = append(entries, r.Entry())
	}
	require.NoError(t, r.Err())
	return entries
}

func TestReadEntries(t *testing.T) {
	entries := readAll(t, library)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "PEPTIDEK", first.Sequence)
	assert.Equal(t, 2, first.Charge)
	assert.Equal(t, 464.74, first.PrecursorMZ)
	assert.Equal(t, "sp|P12345|TEST_HUMAN", first.Protein)
	require.NotNil(t, first.RetentionTime)
	assert.Equal(t, 42.5, *first.RetentionTime)
	assert.Equal(t, "msp", first.SourceFormat)
	require.Len(t, first.Peaks, 3)
	assert.Equal(t, "y2", first.Peaks[1].Annotation)
	require.Len(t, first.Modifications, 1)
	assert.Equal(t, 7, first.Modifications[0].Position)
	assert.InDelta(t, 15.994915, first.Modifications[0].Mass, 1e-6)

	second := entries[1]
	assert.Equal(t, "ELVISK", second.Sequence)
	assert.Equal(t, "", second.Peaks[0].Annotation)
	assert.Equal(t, "y2^2", second.Peaks[1].Annotation)
}

func TestEntryToPeptide(t *testing.T) {
	entries := readAll(t, library)
	p, err := entries[0].Peptide()
	require.NoError(t, err)

	assert.Equal(t, "sp|P12345|TEST_HUMAN", p.Protein())
	v, ok := p.ObservedIntensity("y2")
	assert.True(t, ok)
	assert.Equal(t, 2500.0, v)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad name", "Name: PEPTIDEK\nNum peaks: 0\n"},
		{"bad charge", "Name: PEPTIDEK/x\nNum peaks: 0\n"},
		{"bad peak count", "Name: PEPTIDEK/2\nNum peaks: many\n"},
		{"bad peak", "Name: PEPTIDEK/2\nNum peaks: 1\nabc 12\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.in), nil, nil)
			for r.Next() {
			}
			assert.Error(t, r.Err())
		})
	}
}

func TestUnknownModificationIsSkipped(t *testing.T) {
	in := "Name: PEPTIDEK/2\nComment: ModString=PEPTIDEK//Mystery@3/2\nNum peaks: 0\n"
	entries := readAll(t, in)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Modifications)
}

func TestEmptyInput(t *testing.T) {
	assert.Empty(t, readAll(t, "\n\n"))
}
