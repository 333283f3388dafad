package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// AttemptFunc performs attempt n (1-indexed) and reports its outcome.
type AttemptFunc func(ctx context.Context, n int) Outcome

// Result is the terminal record of an Execute call: the last outcome
// observed and how many attempts were made.
type Result struct {
	Outcome  Outcome
	Attempts int
}

// Execute runs attempt repeatedly under policy until it succeeds, exhausts
// Attempts, exceeds MaxElapsedSeconds, or the outcome is classified
// terminal. A nil policy makes exactly one attempt regardless of outcome
// (§4.5, final paragraph: "requests without a retry policy ... are
// attempted exactly once"). sleep defaults to time.Sleep when nil, and now
// defaults to time.Now when nil; both are injectable for deterministic
// tests. onWait, if non-nil, is called before each sleep with the
// 1-indexed attempt about to be made and the computed wait, so callers can
// log the decision (§4.8 "retry-wait" log entries).
func Execute(ctx context.Context, policy *Policy, attempt AttemptFunc, sleep func(time.Duration), now func() time.Time, onWait func(nextAttempt int, wait time.Duration)) Result {
	if sleep == nil {
		sleep = time.Sleep
	}
	if now == nil {
		now = time.Now
	}

	if policy == nil {
		return Result{Outcome: attempt(ctx, 1), Attempts: 1}
	}

	maxAttempts := policy.Attempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := now()
	var last Outcome
	for n := 1; n <= maxAttempts; n++ {
		last = attempt(ctx, n)
		class := Classify(last, policy)
		if !class.Retryable() {
			return Result{Outcome: last, Attempts: n}
		}
		if n == maxAttempts {
			break
		}
		wait := policy.Wait(n+1, nil)
		if policy.MaxElapsedSeconds > 0 {
			elapsed := now().Sub(start)
			if elapsed+wait > time.Duration(policy.MaxElapsedSeconds*float64(time.Second)) {
				return Result{Outcome: last, Attempts: n}
			}
		}
		if onWait != nil {
			onWait(n+1, wait)
		}
		sleep(wait)
	}
	return Result{Outcome: last, Attempts: maxAttempts}
}

// newRand is a small helper kept for callers (e.g. tests) that want a seeded
// source without reaching into math/rand/v2 directly.
func newRand(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}
