package backoff

import (
	"math"
	"time"
)

// ExponentialJitter returns base doubled per attempt, capped at max, with
// +/- 20% jitter so a pool of consumers does not retry in lockstep.
func ExponentialJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	mul := math.Pow(2, float64(attempt-1))
	d := time.Duration(float64(base) * mul)
	// High attempts overflow the conversion to a negative duration; clamp
	// to max rather than letting the caller sleep zero and hot-spin.
	if d <= 0 || d > max {
		d = max
	}

	j := time.Duration(float64(d) * 0.2)
	if j <= 0 {
		return d
	}
	return d - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}
