package operator

import "github.com/payloadstash/payloadstash/internal/valuetree"

// Deferred describes a request-time operator that was not evaluated at
// config-resolve time because its "when" field was "request" (§4.3, §9
// design note "Deferred values").
type Deferred struct {
	Kind    string // "dynamic" or "timestamp"
	Pattern string // set when Kind == "dynamic"
	Format  string // set when Kind == "timestamp"
}

// deferredMarker builds the {$deferred: {...}} value tree node that stands
// in for d in the resolved document.
func deferredMarker(d Deferred) *valuetree.Value {
	params := valuetree.NewMapping()
	params.Set("kind", valuetree.String(d.Kind))
	if d.Kind == "dynamic" {
		params.Set("pattern", valuetree.String(d.Pattern))
	}
	if d.Kind == "timestamp" {
		params.Set("format", valuetree.String(d.Format))
	}
	outer := valuetree.NewMapping()
	outer.Set("$deferred", &valuetree.Value{Kind: valuetree.KindMapping, Mapping: params})
	return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: outer}
}

// ParseDeferred reports whether v is a {$deferred: {...}} marker node and,
// if so, extracts its parameters.
func ParseDeferred(v *valuetree.Value) (Deferred, bool) {
	m, ok := v.AsMapping()
	if !ok {
		return Deferred{}, false
	}
	inner, ok := m.Get("$deferred")
	if !ok {
		return Deferred{}, false
	}
	params, ok := inner.AsMapping()
	if !ok {
		return Deferred{}, false
	}
	kindVal, _ := params.Get("kind")
	kind, _ := kindVal.AsString()
	d := Deferred{Kind: kind}
	if patVal, ok := params.Get("pattern"); ok {
		d.Pattern, _ = patVal.AsString()
	}
	if fmtVal, ok := params.Get("format"); ok {
		d.Format, _ = fmtVal.AsString()
	}
	return d, true
}
