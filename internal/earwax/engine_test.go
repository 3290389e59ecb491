package earwax

import (
	"math"
	"testing"
)

func TestIncrementAtReferencePoint(t *testing.T) {
	for _, previous := range []float64{0, 12.5, 50, 94.99} {
		next, saturated := Advance(previous, 25, 50, 25, 25)
		if saturated {
			t.Fatalf("previous=%v: unexpected saturation", previous)
		}
		if got := next - previous; got != 5.0 {
			t.Fatalf("previous=%v: increment %v, want exactly 5.0", previous, got)
		}
	}
}

func TestIncrementFactors(t *testing.T) {
	got := Increment(30, 60, 40, 30)
	want := 5.0 * 1.1 * 1.1 * 1.1
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Increment = %v, want %v", got, want)
	}
}

func TestIncrementIsClamped(t *testing.T) {
	tests := []struct {
		name                          string
		temperature, humidity, pm, pd float64
		want                          float64
	}{
		{"hot humid polluted", 60, 100, 500, 500, MaxIncrement},
		{"two negative factors", -1000, -1000, 0, 0, MaxIncrement},
		{"freezing", -40, 50, 25, 25, 0},
		{"dry", 25, -100, 25, 25, 0},
		{"nan", math.NaN(), 50, 25, 25, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Increment(tt.temperature, tt.humidity, tt.pm, tt.pd)
			if got != tt.want {
				t.Fatalf("Increment = %v, want %v", got, tt.want)
			}
			if got < 0 || got > MaxIncrement {
				t.Fatalf("Increment %v outside [0, %v]", got, MaxIncrement)
			}
		})
	}
}

func TestAdvanceSaturates(t *testing.T) {
	next, saturated := Advance(97.0, 25, 50, 25, 25)
	if !saturated || next != 0.0 {
		t.Fatalf("Advance(97) = (%v, %v), want (0, true)", next, saturated)
	}

	// Landing exactly on the boundary also saturates.
	next, saturated = Advance(95.0, 25, 50, 25, 25)
	if !saturated || next != 0.0 {
		t.Fatalf("Advance(95) = (%v, %v), want (0, true)", next, saturated)
	}
}

func TestAdvanceStaysBelowSaturation(t *testing.T) {
	for previous := 0.0; previous < SaturationLevel; previous += 0.75 {
		for _, temp := range []float64{-10, 25, 45} {
			next, saturated := Advance(previous, temp, 80, 60, 90)
			if saturated {
				if next != 0 {
					t.Fatalf("saturated with next=%v", next)
				}
				continue
			}
			if next >= SaturationLevel {
				t.Fatalf("Advance(%v, %v) = %v, want < %v", previous, temp, next, SaturationLevel)
			}
			if next < previous {
				t.Fatalf("Advance(%v, %v) decreased to %v", previous, temp, next)
			}
		}
	}
}

func TestRound2(t *testing.T) {
	if got := round2(6.655000000000001); got != 6.66 {
		t.Fatalf("round2 = %v, want 6.66", got)
	}
	if got := round2(31.4149); got != 31.41 {
		t.Fatalf("round2 = %v, want 31.41", got)
	}
}

func TestStoredPercentageNeverRoundsUpToSaturation(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{99.997, 99.99},
		{99.995, 99.99},
		{99.994, 99.99},
		{47.506, 47.51},
		{100, 100},
		{0, 0},
	}
	for _, tt := range tests {
		if got := storedPercentage(tt.in); got != tt.want {
			t.Errorf("storedPercentage(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
