package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nielshulstaert/compomics-sigpep/internal/testutil"
	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

func observedPeptide(intensities map[string]float64) (*core.Peptide, []*core.ProductIon) {
	ions := []*core.ProductIon{
		testutil.IonAt(core.IonY, 1, 147.11),
		testutil.IonAt(core.IonY, 2, 276.16),
		testutil.IonAt(core.IonY, 3, 389.24),
		testutil.IonAt(core.IonY, 4, 504.27),
		testutil.IonAt(core.IonY, 5, 617.35),
	}
	var opts []core.PeptideOption
	if intensities != nil {
		opts = append(opts, core.WithObservedIntensities(intensities))
	}
	p := core.NewPeptideFromIons("T", 1000, ions, opts...)
	return p, p.PrecursorIon().ProductIons(core.IonY)
}

func labels(ions []*core.ProductIon) []string {
	out := make([]string, len(ions))
	for i, ion := range ions {
		out[i] = ion.Label()
	}
	return out
}

func TestSelect(t *testing.T) {
	intensities := map[string]float64{"y1": 100, "y2": 900, "y3": 50, "y4": 1000, "y5": 300}

	tests := []struct {
		name string
		cfg  Config
		obs  map[string]float64
		want []string
	}{
		{"no filters", Config{}, intensities, []string{"y1", "y2", "y3", "y4", "y5"}},
		{"mz range", Config{MinMZ: 200, MaxMZ: 510}, intensities, []string{"y2", "y3", "y4"}},
		{"min fragment length", Config{MinFragmentLength: 3}, intensities, []string{"y3", "y4", "y5"}},
		{"top n keeps order", Config{TopN: 2}, intensities, []string{"y2", "y4"}},
		{"intensity cutoff", Config{IntensityCutoff: 25}, intensities, []string{"y2", "y4", "y5"}},
		{"combined", Config{MinFragmentLength: 2, IntensityCutoff: 10, TopN: 2}, intensities, []string{"y2", "y4"}},
		{"unobserved ions dropped", Config{TopN: 5}, map[string]float64{"y3": 10, "y5": 20}, []string{"y3", "y5"}},
		{"no library intensities", Config{TopN: 1, IntensityCutoff: 50}, nil, []string{"y1", "y2", "y3", "y4", "y5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ions := observedPeptide(tt.obs)
			got := tt.cfg.Select(p, ions)
			assert.Equal(t, tt.want, labels(got))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"valid", Config{MinMZ: 150, MaxMZ: 1500, TopN: 6, IntensityCutoff: 5, IonTypes: []string{"b", "y"}}, false},
		{"inverted range", Config{MinMZ: 900, MaxMZ: 300}, true},
		{"negative top n", Config{TopN: -1}, true},
		{"cutoff above 100", Config{IntensityCutoff: 150}, true},
		{"bad ion type", Config{IonTypes: []string{"q"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				var verr *core.ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			assert.NoError(t, err)
		})
	}
	assert.False(t, (&Config{IonTypes: []string{"y"}}).Enabled())
	assert.True(t, (&Config{TopN: 3}).Enabled())
}

func TestApply(t *testing.T) {
	entry := &core.LibraryEntry{
		Sequence: "PEPTIDEK",
		Charge:   2,
		Peaks: []core.Peak{
			{MZ: 500, Intensity: 1000, Annotation: "y4"},
			{MZ: 200, Intensity: 10, Annotation: "b2"},
			{MZ: 300, Intensity: 600, Annotation: "y2^2"},
			{MZ: 400, Intensity: 800, Annotation: "b3-H2O"},
			{MZ: 100, Intensity: 900, Annotation: "?"},
		},
	}
	cfg := Config{IonTypes: []string{"y", "b"}, IntensityCutoff: 5, TopN: 3}
	cfg.Apply(entry)

	require.Len(t, entry.Peaks, 3)
	assert.Equal(t, []float64{300, 400, 500}, []float64{entry.Peaks[0].MZ, entry.Peaks[1].MZ, entry.Peaks[2].MZ})
}

func TestParseIonAnnotation(t *testing.T) {
	tests := []struct {
		in      string
		want    IonAnnotation
		wantErr bool
	}{
		{"y3", IonAnnotation{Type: core.IonY, Position: 3, Charge: 1}, false},
		{"b2^2", IonAnnotation{Type: core.IonB, Position: 2, Charge: 2}, false},
		{"y10^3-H2O", IonAnnotation{Type: core.IonY, Position: 10, Charge: 3}, false},
		{"p-H2O", IonAnnotation{}, true},
		{"", IonAnnotation{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIonAnnotation(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	entry := &core.LibraryEntry{Peaks: []core.Peak{{MZ: 1, Intensity: 0}, {MZ: 2, Intensity: 5}, {MZ: 3, Intensity: -1}}}
	RemoveZeroIntensityPeaks(entry)
	require.Len(t, entry.Peaks, 1)
	assert.Equal(t, 2.0, entry.Peaks[0].MZ)
}
