package bands

import "math"

// Round applies the official overall-band rounding rule. Averages land on
// the nearest half band, with the .25 and .75 boundaries rounding up:
// 6.25 -> 6.5 and 6.75 -> 7.0.
func Round(avg float64) float64 {
	floor := math.Floor(avg)
	frac := avg - floor
	switch {
	case frac < 0.25:
		return floor
	case frac < 0.75:
		return floor + 0.5
	default:
		return math.Ceil(avg)
	}
}

// Overall combines section bands into one overall band. ok is false for an
// empty list: an attempt with no band-scored sections has no overall band.
func Overall(sectionBands []float64) (float64, bool) {
	if len(sectionBands) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, b := range sectionBands {
		sum += b
	}
	return Round(sum / float64(len(sectionBands))), true
}
