package resilience

import (
	"math"
	"time"
)

// Delay returns the wait applied after attempt number `attempt` fails
// (1-indexed): initial * 2^(attempt-1). Deterministic, no jitter.
func Delay(initial time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
}
