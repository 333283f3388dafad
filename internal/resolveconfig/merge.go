package resolveconfig

import (
	"fmt"

	"github.com/payloadstash/payloadstash/internal/apperr"
	"github.com/payloadstash/payloadstash/internal/retry"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

// mergeSection implements §4.4 step 1: base is the request section if
// present, else Defaults; overlay is Forced if present. Merging is shallow,
// per top-level key, with overlay keys replacing base keys wholesale (no
// deep merge).
func mergeSection(reqSection, defaultsSection, forcedSection *valuetree.Value, path string) (*valuetree.Value, error) {
	base := reqSection
	if base == nil {
		base = defaultsSection
	}
	overlay := forcedSection

	if base == nil && overlay == nil {
		return nil, nil
	}
	if overlay == nil {
		return base.Clone(), nil
	}
	if base == nil {
		return overlay.Clone(), nil
	}

	baseMap, ok := base.AsMapping()
	if !ok {
		return nil, apperr.NewValidation(path, "section must be a mapping")
	}
	overlayMap, ok := overlay.AsMapping()
	if !ok {
		return nil, apperr.NewValidation(path, "section must be a mapping")
	}

	merged := baseMap.Clone()
	for _, k := range overlayMap.Keys() {
		v, _ := overlayMap.Get(k)
		merged.Set(k, v.Clone())
	}
	return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: merged}, nil
}

// effectiveFlowControl implements §4.4 step 3: field-wise overlay of
// Defaults.FlowControl by the request's optional overlay.
func effectiveFlowControl(base FlowControl, overlay FlowControlOverlay) FlowControl {
	out := base
	if overlay.DelaySeconds != nil {
		out.DelaySeconds = *overlay.DelaySeconds
	}
	if overlay.TimeoutSeconds != nil {
		out.TimeoutSeconds = *overlay.TimeoutSeconds
	}
	return out
}

// resolveRetryPrecedence implements §4.4 step 4 and §9's tri-state design
// note: descend request -> Defaults -> StashConfig, stopping at the first
// source where the Retry key was authored at all (even as null).
func resolveRetryPrecedence(request, defaults, top RetrySource, path string) (*retry.Policy, error) {
	for _, src := range []RetrySource{request, defaults, top} {
		if !src.Present {
			continue
		}
		if src.Value.IsNull() {
			return nil, nil
		}
		return buildRetryPolicy(src.Value, path)
	}
	return nil, nil
}

func buildRetryPolicy(v *valuetree.Value, path string) (*retry.Policy, error) {
	m, ok := v.AsMapping()
	if !ok {
		return nil, apperr.NewValidation(path, "Retry must be a mapping")
	}
	p := &retry.Policy{
		RetryOnNetworkErrors: true,
		RetryOnTimeouts:      true,
		RetryOnStatus:        map[int]bool{},
	}

	attemptsVal, _ := m.Get("Attempts")
	attempts, _ := attemptsVal.AsInt()
	if attempts < 1 {
		return nil, apperr.NewValidation(path+".Attempts", "Attempts must be >= 1")
	}
	p.Attempts = int(attempts)

	strategyVal, _ := m.Get("BackoffStrategy")
	strategy, _ := strategyVal.AsString()
	switch strategy {
	case "exponential":
		p.BackoffStrategy = retry.BackoffExponential
	default:
		p.BackoffStrategy = retry.BackoffFixed
	}

	backoffVal, _ := m.Get("BackoffSeconds")
	p.BackoffSeconds, _ = backoffVal.AsFloat()

	if mv, ok := m.Get("Multiplier"); ok {
		p.Multiplier, _ = mv.AsFloat()
	}
	if mv, ok := m.Get("MaxBackoffSeconds"); ok {
		p.MaxBackoffSeconds, _ = mv.AsFloat()
	}
	if mv, ok := m.Get("MaxElapsedSeconds"); ok {
		p.MaxElapsedSeconds, _ = mv.AsFloat()
	}

	if jv, ok := m.Get("Jitter"); ok {
		if b, ok := jv.AsBool(); ok {
			if b {
				p.Jitter = retry.JitterFull
			} else {
				p.Jitter = retry.JitterNone
			}
		} else if s, ok := jv.AsString(); ok {
			switch s {
			case "max":
				p.Jitter = retry.JitterFull
			case "min":
				p.Jitter = retry.JitterEqual
			default:
				return nil, apperr.NewValidation(path+".Jitter", fmt.Sprintf("invalid Jitter value %q", s))
			}
		}
	}

	if rs, ok := m.Get("RetryOnStatus"); ok {
		elems, _ := rs.AsSequence()
		for _, e := range elems {
			n, _ := e.AsInt()
			p.RetryOnStatus[int(n)] = true
		}
	}
	if v, ok := m.Get("RetryOnNetworkErrors"); ok {
		p.RetryOnNetworkErrors, _ = v.AsBool()
	}
	if v, ok := m.Get("RetryOnTimeouts"); ok {
		p.RetryOnTimeouts, _ = v.AsBool()
	}

	return p, nil
}
