package core

import (
	"math"
	"strings"
	"testing"
)

func TestLibraryEntryValidation(t *testing.T) {
	tests := []struct {
		name    string
		entry   *LibraryEntry
		wantErr bool
	}{
		{
			name: "valid entry",
			entry: &LibraryEntry{
				Sequence: "PEPTIDE",
				Charge:   2,
				Peaks:    []Peak{{MZ: 100.0, Intensity: 1000.0}},
			},
		},
		{
			name:  "entry without peaks",
			entry: &LibraryEntry{Sequence: "PEPTIDE", Charge: 2},
		},
		{
			name:    "missing sequence",
			entry:   &LibraryEntry{Charge: 2},
			wantErr: true,
		},
		{
			name:    "unknown residue",
			entry:   &LibraryEntry{Sequence: "PEPTIDEB", Charge: 2},
			wantErr: true,
		},
		{
			name:    "zero charge",
			entry:   &LibraryEntry{Sequence: "PEPTIDE"},
			wantErr: true,
		},
		{
			name: "NaN m/z",
			entry: &LibraryEntry{
				Sequence: "PEPTIDE",
				Charge:   2,
				Peaks:    []Peak{{MZ: math.NaN(), Intensity: 1000.0}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestObservedIntensities(t *testing.T) {
	entry := &LibraryEntry{
		Sequence: "PEPTIDE",
		Charge:   2,
		Peaks: []Peak{
			{MZ: 148.06, Intensity: 50, Annotation: "y1"},
			{MZ: 263.09, Intensity: 80, Annotation: "y2"},
			{MZ: 132.05, Intensity: 120, Annotation: "y2^2"},
			{MZ: 245.08, Intensity: 999, Annotation: "y2-18"},
			{MZ: 300.00, Intensity: 10},
		},
	}

	obs := entry.ObservedIntensities()
	if len(obs) != 2 {
		t.Fatalf("expected 2 labels, got %d: %v", len(obs), obs)
	}
	if obs["y2"] != 120 {
		t.Errorf("y2 intensity = %v, want 120", obs["y2"])
	}

	p, err := entry.Peptide()
	if err != nil {
		t.Fatalf("Peptide() error: %v", err)
	}
	if v, ok := p.ObservedIntensity("y1"); !ok || v != 50 {
		t.Errorf("y1 observed = %v, %v", v, ok)
	}
}

func TestSortPeaks(t *testing.T) {
	entry := &LibraryEntry{
		Peaks: []Peak{
			{MZ: 300.0, Intensity: 100.0},
			{MZ: 100.0, Intensity: 200.0},
			{MZ: 200.0, Intensity: 150.0},
		},
	}

	entry.SortPeaks()

	expected := []float64{100.0, 200.0, 300.0}
	for i, peak := range entry.Peaks {
		if peak.MZ != expected[i] {
			t.Errorf("Peak %d: expected m/z %.1f, got %.1f", i, expected[i], peak.MZ)
		}
	}
}

func TestEntryNameAndModString(t *testing.T) {
	entry := &LibraryEntry{
		Sequence: "PEPTIDE",
		Charge:   2,
		Modifications: []Modification{
			{Mass: 57.021464, Position: 3},
			{Mass: 15.994915, Position: 7},
		},
	}

	if name := entry.Name(); name != "PEPTIDE/2" {
		t.Errorf("Expected name PEPTIDE/2, got %s", name)
	}
	if got := entry.ModString(); !strings.Contains(got, "57.021464@3") || !strings.Contains(got, "15.994915@7") {
		t.Errorf("unexpected mod string %q", got)
	}
}

func TestParseModString(t *testing.T) {
	db := DefaultModDatabase()

	mods, err := db.ParseModString("Carbamidomethyl@C2;15.994915@M5", "ACDEMK")
	if err != nil {
		t.Fatalf("ParseModString() error: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("expected 2 mods, got %d", len(mods))
	}
	if mods[0].Position != 1 || mods[0].Mass != 57.021464 {
		t.Errorf("unexpected first mod %+v", mods[0])
	}
	if mods[1].Position != 4 {
		t.Errorf("unexpected second mod position %d", mods[1].Position)
	}

	if _, err := db.ParseModString("Nonsense@2", "ACDEMK"); err == nil {
		t.Error("expected error for unknown modification")
	}
	if _, err := db.ParseModString("Oxidation", "ACDEMK"); err == nil {
		t.Error("expected error for missing position")
	}
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"-1", -1},
		{"0", 0},
		{"1", 0},
		{"C2", 1},
		{"6", 5},
	}
	for _, tt := range tests {
		got, err := parsePosition(tt.in, "ACDEMK")
		if err != nil {
			t.Errorf("parsePosition(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePosition(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if _, err := parsePosition("9", "ACDEMK"); err == nil {
		t.Error("expected error for position beyond the sequence")
	}
}

func TestLoadFromCSV(t *testing.T) {
	db := NewModDatabase()
	csv := "mod,massshift,aa\nCustom,12.5,K\n\nOther,-1.25,S\n"
	if err := db.LoadFromCSV(strings.NewReader(csv)); err != nil {
		t.Fatalf("LoadFromCSV() error: %v", err)
	}
	if db.Len() != 2 {
		t.Errorf("expected 2 mods, got %d", db.Len())
	}
	if m, ok := db.GetMass("Other"); !ok || m != -1.25 {
		t.Errorf("GetMass(Other) = %v, %v", m, ok)
	}

	if err := NewModDatabase().LoadFromCSV(strings.NewReader("h\nbad,xx\n")); err == nil {
		t.Error("expected error for invalid mass")
	}
}
