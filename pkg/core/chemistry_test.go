package core

import (
	"math"
	"testing"
)

func TestCalculatePeptideMass(t *testing.T) {
	tests := []struct {
		name          string
		sequence      string
		charge        int
		modifications []Modification
		wantMZ        float64
		tolerance     float64
	}{
		{
			name:      "simple peptide charge 1",
			sequence:  "AAA",
			charge:    1,
			wantMZ:    232.129,
			tolerance: 0.01,
		},
		{
			name:      "simple peptide charge 2",
			sequence:  "AAA",
			charge:    2,
			wantMZ:    116.569,
			tolerance: 0.01,
		},
		{
			name:     "peptide with modification",
			sequence: "PEPTIDE",
			charge:   2,
			modifications: []Modification{
				{Mass: 57.021464, Position: 0},
			},
			wantMZ:    429.2,
			tolerance: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePeptideMass(tt.sequence, tt.charge, tt.modifications)
			if math.Abs(got-tt.wantMZ) > tt.tolerance {
				t.Errorf("CalculatePeptideMass() = %.3f, want %.3f (within %.3f)", got, tt.wantMZ, tt.tolerance)
			}
		})
	}
}

func TestCalculateNeutralMass(t *testing.T) {
	tests := []struct {
		name          string
		sequence      string
		modifications []Modification
		wantMass      float64
	}{
		{"simple tripeptide", "AAA", nil, 231.1219},
		{"with modification", "AAA", []Modification{{Mass: 57.021464, Position: 0}}, 288.1434},
		{"PEPTIDE", "PEPTIDE", nil, 799.3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNeutralMass(tt.sequence, tt.modifications)
			if math.Abs(got-tt.wantMass) > 0.001 {
				t.Errorf("CalculateNeutralMass() = %.4f, want %.4f", got, tt.wantMass)
			}
		})
	}
}

func TestValidateSequence(t *testing.T) {
	if err := ValidateSequence("PEPTIDEK"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateSequence(""); err == nil {
		t.Error("expected error for empty sequence")
	}
	if err := ValidateSequence("PEPXIDE"); err == nil {
		t.Error("expected error for unknown residue")
	}
}

func TestRoundFloat(t *testing.T) {
	tests := []struct {
		name      string
		val       float64
		precision int
		want      float64
	}{
		{"round to 2 decimals", 3.14159, 2, 3.14},
		{"round to 4 decimals", 3.14159, 4, 3.1416},
		{"round to 0 decimals", 3.6, 0, 4.0},
		{"round negative", -3.14159, 2, -3.14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundFloat(tt.val, tt.precision)
			if got != tt.want {
				t.Errorf("RoundFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}
