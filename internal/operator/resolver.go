// Package operator resolves the value tree's operator nodes ($dynamic,
// $secrets, $func/$timestamp) into either final literal values or
// {$deferred: {...}} markers (§4.3), the way runpipe/pipeline represents
// "not plain data" (ErrParked, Retryable) as a distinct Go type rather than
// re-sniffing shape at every call site.
package operator

import (
	"fmt"

	"github.com/payloadstash/payloadstash/internal/apperr"
	"github.com/payloadstash/payloadstash/internal/dynamic"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

// Resolver carries everything needed to evaluate operator nodes: the named
// pattern definitions, the named string sets, the secrets mapping, and
// whether secret resolution should redact.
type Resolver struct {
	Patterns dynamic.Patterns
	Sets     dynamic.Sets
	Secrets  dynamic.Secrets
	Redact   bool

	// cache holds the first resolve-time expansion per pattern name so
	// repeated non-deferred references to the same name are stable within
	// one resolved document (§4.3 "Determinism note").
	cache map[string]cachedExpansion
}

type cachedExpansion struct {
	value string
	err   error
}

// NewResolver returns a Resolver ready to walk a value tree.
func NewResolver(patterns dynamic.Patterns, sets dynamic.Sets, secrets dynamic.Secrets, redact bool) *Resolver {
	return &Resolver{Patterns: patterns, Sets: sets, Secrets: secrets, Redact: redact, cache: map[string]cachedExpansion{}}
}

// Resolve walks v and returns a new tree with every operator node replaced
// by its resolved value or a deferred marker. v is not mutated.
func (r *Resolver) Resolve(v *valuetree.Value) (*valuetree.Value, error) {
	return r.resolve(v, "")
}

func (r *Resolver) resolve(v *valuetree.Value, path string) (*valuetree.Value, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case valuetree.KindString:
		out, err := dynamic.InterpolateInline(v.Str, r.Secrets, r.Redact)
		if err != nil {
			return nil, apperr.NewValidation(path, err.Error())
		}
		return valuetree.String(out), nil
	case valuetree.KindSequence:
		out := make([]*valuetree.Value, len(v.Sequence))
		for i, e := range v.Sequence {
			rv, err := r.resolve(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return &valuetree.Value{Kind: valuetree.KindSequence, Sequence: out}, nil
	case valuetree.KindMapping:
		return r.resolveMapping(v.Mapping, path)
	default:
		return v.Clone(), nil
	}
}

func (r *Resolver) resolveMapping(m *valuetree.Mapping, path string) (*valuetree.Value, error) {
	op := m.OperatorKey()
	if op == "" {
		out := valuetree.NewMapping()
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			rv, err := r.resolve(val, path+"."+k)
			if err != nil {
				return nil, err
			}
			out.Set(k, rv)
		}
		return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: out}, nil
	}

	switch op {
	case "$dynamic":
		return r.resolveDynamic(m, path)
	case "$timestamp":
		return r.resolveTimestampShorthand(m, path)
	case "$func":
		return r.resolveFunc(m, path)
	case "$secrets":
		return r.resolveSecrets(m, path)
	case "$deferred":
		// Already a marker (e.g. authored directly, or re-walked); pass through.
		return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: m.Clone()}, nil
	default:
		return nil, apperr.NewValidation(path, "unreachable operator key "+op)
	}
}

func whenIsRequest(m *valuetree.Mapping) bool {
	w, ok := m.Get("when")
	if !ok {
		return false
	}
	s, _ := w.AsString()
	return s == "request"
}

func (r *Resolver) resolveDynamic(m *valuetree.Mapping, path string) (*valuetree.Value, error) {
	nameVal, _ := m.Get("$dynamic")
	name, ok := nameVal.AsString()
	if !ok {
		return nil, apperr.NewValidation(path, "$dynamic pattern name must be a string")
	}
	if whenIsRequest(m) {
		return deferredMarker(Deferred{Kind: "dynamic", Pattern: name}), nil
	}
	val, err := r.expandPatternCached(name)
	if err != nil {
		return nil, err
	}
	return valuetree.String(val), nil
}

// expandPatternCached returns the resolve-time expansion of the named
// pattern, computing and caching it (value and error) on first reference
// so every subsequent non-deferred reference to the same name is identical
// within one resolved document (§4.3 "Determinism note").
func (r *Resolver) expandPatternCached(name string) (string, error) {
	if c, ok := r.cache[name]; ok {
		return c.value, c.err
	}
	v, err := r.expandPattern(name)
	r.cache[name] = cachedExpansion{value: v, err: err}
	return v, err
}

func (r *Resolver) expandPattern(name string) (string, error) {
	pat, ok := r.Patterns[name]
	if !ok {
		return "", apperr.NewValidation("", fmt.Sprintf("unknown $dynamic pattern %q", name))
	}
	return dynamic.Expand(pat.Template, r.Sets, r.Secrets, r.Redact)
}

func (r *Resolver) resolveTimestampShorthand(m *valuetree.Mapping, path string) (*valuetree.Value, error) {
	valNode, _ := m.Get("$timestamp")
	format := "iso_8601"
	when := whenIsRequest(m)
	if s, ok := valNode.AsString(); ok && s != "" {
		format = s
	} else if inner, ok := valNode.AsMapping(); ok {
		if fv, ok := inner.Get("format"); ok {
			if s, ok := fv.AsString(); ok {
				format = s
			}
		}
		if wv, ok := inner.Get("when"); ok {
			if s, ok := wv.AsString(); ok {
				when = when || s == "request"
			}
		}
	}
	return r.resolveTimestamp(format, when, path)
}

func (r *Resolver) resolveFunc(m *valuetree.Mapping, path string) (*valuetree.Value, error) {
	nameVal, _ := m.Get("$func")
	name, _ := nameVal.AsString()
	if name != "timestamp" {
		return nil, apperr.NewValidation(path, fmt.Sprintf("unsupported $func %q", name))
	}
	format := "iso_8601"
	if fv, ok := m.Get("format"); ok {
		if s, ok := fv.AsString(); ok {
			format = s
		}
	}
	return r.resolveTimestamp(format, whenIsRequest(m), path)
}

func (r *Resolver) resolveTimestamp(format string, deferred bool, path string) (*valuetree.Value, error) {
	if deferred {
		return deferredMarker(Deferred{Kind: "timestamp", Format: format}), nil
	}
	ts, ok := dynamic.FormatTimestamp(format)
	if !ok {
		return nil, apperr.NewValidation(path, fmt.Sprintf("unknown timestamp format %q", format))
	}
	return valuetree.String(ts), nil
}

func (r *Resolver) resolveSecrets(m *valuetree.Mapping, path string) (*valuetree.Value, error) {
	keyVal, _ := m.Get("$secrets")
	key, ok := keyVal.AsString()
	if !ok {
		return nil, apperr.NewValidation(path, "$secrets key must be a string")
	}
	val, err := dynamic.ResolveSecret(key, r.Secrets, r.Redact)
	if err != nil {
		return nil, apperr.NewValidation(path, err.Error())
	}
	return valuetree.String(val), nil
}

// ResolveDeferredValue materializes a single Deferred marker at send time,
// generating a fresh value (dynamic patterns expand afresh, timestamps use
// the current wall clock — §4.7 step 1).
func (r *Resolver) ResolveDeferredValue(d Deferred) (*valuetree.Value, error) {
	switch d.Kind {
	case "dynamic":
		s, err := r.expandPattern(d.Pattern)
		if err != nil {
			return nil, err
		}
		return valuetree.String(s), nil
	case "timestamp":
		ts, ok := dynamic.FormatTimestamp(d.Format)
		if !ok {
			return nil, apperr.NewValidation("", fmt.Sprintf("unknown timestamp format %q", d.Format))
		}
		return valuetree.String(ts), nil
	default:
		return nil, apperr.NewValidation("", fmt.Sprintf("unknown deferred kind %q", d.Kind))
	}
}

// ResolveDeferredTree walks v (typically an effective request's Headers,
// Body, or Query, already merged and resolved at document-resolve time) and
// replaces every {$deferred: {...}} marker with a freshly materialized
// value. Used immediately before each send attempt (§4.7).
func (r *Resolver) ResolveDeferredTree(v *valuetree.Value) (*valuetree.Value, error) {
	if v == nil {
		return nil, nil
	}
	if d, ok := ParseDeferred(v); ok {
		return r.ResolveDeferredValue(d)
	}
	switch v.Kind {
	case valuetree.KindSequence:
		out := make([]*valuetree.Value, len(v.Sequence))
		for i, e := range v.Sequence {
			rv, err := r.ResolveDeferredTree(e)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return &valuetree.Value{Kind: valuetree.KindSequence, Sequence: out}, nil
	case valuetree.KindMapping:
		out := valuetree.NewMapping()
		for _, k := range v.Mapping.Keys() {
			val, _ := v.Mapping.Get(k)
			rv, err := r.ResolveDeferredTree(val)
			if err != nil {
				return nil, err
			}
			out.Set(k, rv)
		}
		return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: out}, nil
	default:
		return v.Clone(), nil
	}
}
