package playback

import "math"

// SliderFraction returns position/duration in [0,1].
// It returns 0 when the duration is unknown.
func SliderFraction(positionMillis, durationMillis int64) float64 {
	if durationMillis <= 0 {
		return 0
	}
	return clampFraction(float64(positionMillis) / float64(durationMillis))
}

// SeekTarget converts a slider fraction into an absolute position.
// The fraction is clamped to [0,1] first.
func SeekTarget(fraction float64, durationMillis int64) int64 {
	if durationMillis <= 0 {
		return 0
	}
	return int64(clampFraction(fraction) * float64(durationMillis))
}

// ClampPosition keeps a reported position within [0, duration].
// An unknown (zero) duration only clamps at 0.
func ClampPosition(positionMillis, durationMillis int64) int64 {
	if positionMillis < 0 {
		return 0
	}
	if durationMillis > 0 && positionMillis > durationMillis {
		return durationMillis
	}
	return positionMillis
}

// ValidFraction reports whether f is a usable slider value.
func ValidFraction(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

func clampFraction(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
