package exclusion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit is the unit of a mass accuracy tolerance.
type Unit int

const (
	// Dalton is an absolute m/z tolerance.
	Dalton Unit = iota
	// PPM is a tolerance relative to the reference m/z, in parts per million.
	PPM
)

func (u Unit) String() string {
	if u == PPM {
		return "ppm"
	}
	return "Da"
}

// MassAccuracy is the window within which two m/z values are considered
// indistinguishable.
type MassAccuracy struct {
	Value float64
	Unit  Unit
}

// Daltons returns an absolute tolerance.
func Daltons(v float64) MassAccuracy { return MassAccuracy{Value: v, Unit: Dalton} }

// PartsPerMillion returns a relative tolerance.
func PartsPerMillion(v float64) MassAccuracy { return MassAccuracy{Value: v, Unit: PPM} }

// ParseMassAccuracy parses "0.5", "0.5Da" or "10ppm". A bare number is in Daltons.
func ParseMassAccuracy(s string) (MassAccuracy, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	unit := Dalton
	switch {
	case strings.HasSuffix(s, "ppm"):
		unit = PPM
		s = strings.TrimSuffix(s, "ppm")
	case strings.HasSuffix(s, "da"):
		s = strings.TrimSuffix(s, "da")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return MassAccuracy{}, fmt.Errorf("invalid mass accuracy %q: %w", s, err)
	}
	acc := MassAccuracy{Value: v, Unit: unit}
	if err := acc.Validate(); err != nil {
		return MassAccuracy{}, err
	}
	return acc, nil
}

// Validate checks the tolerance is positive and finite.
func (a MassAccuracy) Validate() error {
	if math.IsNaN(a.Value) || math.IsInf(a.Value, 0) || a.Value <= 0 {
		return fmt.Errorf("mass accuracy must be a positive number, got %v", a.Value)
	}
	return nil
}

// Window returns the half-width of the tolerance window around mz.
func (a MassAccuracy) Window(mz float64) float64 {
	if a.Unit == PPM {
		return a.Value * mz / 1e6
	}
	return a.Value
}

// Matches reports whether two m/z values are within tolerance of each other,
// using ref as the reference for relative tolerances.
func (a MassAccuracy) Matches(ref, mz float64) bool {
	return math.Abs(ref-mz) <= a.Window(ref)
}

func (a MassAccuracy) String() string {
	return strconv.FormatFloat(a.Value, 'g', -1, 64) + a.Unit.String()
}
