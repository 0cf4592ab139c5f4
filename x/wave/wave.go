// Package wave generates deterministic test waveforms on a millisecond
// timebase. The simulated channels use these so host runs produce varied
// but reproducible telemetry.
package wave

// Triangle traces lo→hi→lo linearly over periodMs, evaluated at tMs.
// periodMs <= 0 pins the output at lo.
func Triangle(tMs, periodMs int64, lo, hi float64) float64 {
	if periodMs <= 0 {
		return lo
	}
	phase := tMs % periodMs
	if phase < 0 {
		phase += periodMs
	}
	half := float64(periodMs) / 2
	frac := float64(phase) / half
	if frac > 1 {
		frac = 2 - frac
	}
	return lo + (hi-lo)*frac
}

// Square alternates between lo and hi every half period.
func Square(tMs, periodMs int64, lo, hi float64) float64 {
	if periodMs <= 0 {
		return lo
	}
	phase := tMs % periodMs
	if phase < 0 {
		phase += periodMs
	}
	if phase*2 < periodMs {
		return hi
	}
	return lo
}
