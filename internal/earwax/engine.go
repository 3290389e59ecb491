package earwax

import "math"

const (
	// BaseIncrement is the growth per cycle at the reference condition
	// (25°C, 50% humidity, 50 combined particulate units).
	BaseIncrement = 5.0
	// MaxIncrement bounds a single cycle's growth.
	MaxIncrement = 25.0
	// SaturationLevel is the percentage at which the accumulation rolls over.
	SaturationLevel = 100.0
)

// Increment computes the clamped per-cycle growth for the given readings.
// Factors are multiplied in a fixed order so results are reproducible bit for bit.
func Increment(temperature, humidity, pollen, dust float64) float64 {
	tempFactor := 1.0 + (temperature-25)/50
	humidityFactor := 1.0 + (humidity-50)/100
	pollutionFactor := 1.0 + ((pollen+dust)-50)/200

	inc := BaseIncrement * tempFactor * humidityFactor * pollutionFactor

	// NaN fails both comparisons and ends up at 0.
	if !(inc > 0) {
		return 0
	}
	if inc > MaxIncrement {
		return MaxIncrement
	}
	return inc
}

// Advance maps the previous accumulation and current readings to the next value.
// When the candidate reaches SaturationLevel it returns (0, true): the caller is
// responsible for recording the terminal 100% observation.
func Advance(previous, temperature, humidity, pollen, dust float64) (next float64, saturated bool) {
	candidate := previous + Increment(temperature, humidity, pollen, dust)
	if candidate >= SaturationLevel {
		return 0.0, true
	}
	return candidate, false
}

// round2 rounds to two decimal places, the precision stored in the ledger.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// storedPercentage rounds v to ledger precision. Values below SaturationLevel
// stay below it after rounding, so only the terminal record ever reads 100.
func storedPercentage(v float64) float64 {
	r := round2(v)
	if v < SaturationLevel && r >= SaturationLevel {
		return math.Floor(v*100) / 100
	}
	return r
}
