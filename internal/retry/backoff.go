package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Wait computes the backoff duration before attempt number n (the attempt
// about to be made, 2-indexed: n=2 is the wait before the second attempt),
// applying strategy, cap, and jitter in that order (§4.5 "Backoff
// computation"). rnd is injectable for deterministic tests; pass nil to use
// math/rand/v2 directly.
func (p *Policy) Wait(n int, rnd *rand.Rand) time.Duration {
	var seconds float64
	switch p.BackoffStrategy {
	case BackoffExponential:
		seconds = p.BackoffSeconds * math.Pow(p.EffectiveMultiplier(), float64(n-2))
	default:
		seconds = p.BackoffSeconds
	}
	if p.MaxBackoffSeconds > 0 && seconds > p.MaxBackoffSeconds {
		seconds = p.MaxBackoffSeconds
	}
	if seconds < 0 {
		seconds = 0
	}
	seconds = applyJitter(seconds, p.Jitter, rnd)
	return time.Duration(seconds * float64(time.Second))
}

func applyJitter(seconds float64, j Jitter, rnd *rand.Rand) float64 {
	switch j {
	case JitterFull:
		return randFloat(rnd) * seconds
	case JitterEqual:
		half := seconds / 2
		return half + randFloat(rnd)*half
	default:
		return seconds
	}
}

func randFloat(rnd *rand.Rand) float64 {
	if rnd != nil {
		return rnd.Float64()
	}
	return rand.Float64()
}
