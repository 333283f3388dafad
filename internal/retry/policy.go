// Package retry implements the Retry Controller (§4.5): per-attempt
// outcome classification and the fixed/exponential backoff-with-jitter
// state machine. It is grounded on runpipe/config's "fixed"|"exponential"
// retry shape (BuildOptions.wrapStage), reshaped from the teacher's
// park/resume-on-retry (persist state, stop, and let an external resumer
// job continue later) into an in-process retry loop, since PayloadStash
// retries within a single request's lifetime rather than across restarts
// (a run has no persistent state to resume from).
package retry

// Jitter selects how the computed backoff wait is randomized (§4.5, §9
// "Jitter" design note: true/"max" = full jitter, "min" = equal jitter).
type Jitter int

const (
	JitterNone Jitter = iota
	JitterFull
	JitterEqual
)

// BackoffStrategy selects how the n-th retry's wait grows.
type BackoffStrategy int

const (
	BackoffFixed BackoffStrategy = iota
	BackoffExponential
)

// Policy is the resolved, concrete retry policy for one effective request
// (§3 "Retry policy"). A nil *Policy means retries are disabled — either
// because no Retry section was authored at any precedence level, or
// because an explicit null was found (§4.4 "Retry precedence").
type Policy struct {
	Attempts             int // >= 1
	BackoffStrategy       BackoffStrategy
	BackoffSeconds        float64 // >= 0
	Multiplier            float64 // > 0; defaults to 2.0 if unset (0)
	MaxBackoffSeconds     float64 // 0 means uncapped
	MaxElapsedSeconds     float64 // 0 means unbounded
	Jitter                Jitter
	RetryOnStatus         map[int]bool
	RetryOnNetworkErrors  bool
	RetryOnTimeouts       bool
}

// EffectiveMultiplier returns Multiplier, defaulting to 2.0 when unset.
func (p *Policy) EffectiveMultiplier() float64 {
	if p.Multiplier > 0 {
		return p.Multiplier
	}
	return 2.0
}

// StatusIsRetryable reports whether status is in RetryOnStatus.
func (p *Policy) StatusIsRetryable(status int) bool {
	if p == nil {
		return false
	}
	return p.RetryOnStatus[status]
}
