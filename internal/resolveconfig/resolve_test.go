package resolveconfig

import (
	"testing"

	"github.com/payloadstash/payloadstash/internal/apperr"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

func mustDecode(t *testing.T, yaml string) *Document {
	t.Helper()
	root, err := valuetree.FromYAML([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := Decode(root)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

const minimalDoc = `
StashConfig:
  Name: Mini
  Defaults:
    URLRoot: https://x/y
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health}
`

func TestDecode_Minimal(t *testing.T) {
	doc := mustDecode(t, minimalDoc)
	if doc.Name != "Mini" || doc.Defaults.URLRoot != "https://x/y" {
		t.Fatalf("got %+v", doc)
	}
	if len(doc.Sequences) != 1 || doc.Sequences[0].Requests[0].Key != "Ping" {
		t.Fatalf("got %+v", doc.Sequences)
	}
}

func TestResolve_MinimalGET(t *testing.T) {
	doc := mustDecode(t, minimalDoc)
	res, err := Resolve(doc, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	eff := res.Plan.Sequences[0].Requests[0]
	if eff.URLRoot != "https://x/y" || eff.URLPath != "/health" || eff.Method != "GET" {
		t.Fatalf("got %+v", eff)
	}
	if eff.FlowControl.DelaySeconds != 0 || eff.FlowControl.TimeoutSeconds != 5 {
		t.Fatalf("got %+v", eff.FlowControl)
	}
	if eff.Retry != nil {
		t.Fatalf("expected no retry policy, got %+v", eff.Retry)
	}
}

func TestDecode_DuplicateSequenceName(t *testing.T) {
	yaml := `
StashConfig:
  Name: D
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
  Sequences:
    - Name: A
      Type: Sequential
      Requests: [{R: {Method: GET, URLPath: /a}}]
    - Name: A
      Type: Sequential
      Requests: [{R: {Method: GET, URLPath: /b}}]
`
	root, _ := valuetree.FromYAML([]byte(yaml))
	_, err := Decode(root)
	if err == nil || !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecode_DuplicateRequestKey(t *testing.T) {
	yaml := `
StashConfig:
  Name: D
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
  Sequences:
    - Name: A
      Type: Sequential
      Requests:
        - R: {Method: GET, URLPath: /a}
        - R: {Method: GET, URLPath: /b}
`
	root, _ := valuetree.FromYAML([]byte(yaml))
	_, err := Decode(root)
	if err == nil || !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecode_URLRootInsideRequest_Forbidden(t *testing.T) {
	yaml := `
StashConfig:
  Name: D
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
  Sequences:
    - Name: A
      Type: Sequential
      Requests:
        - R: {Method: GET, URLPath: /a, URLRoot: https://evil}
`
	root, _ := valuetree.FromYAML([]byte(yaml))
	_, err := Decode(root)
	if err == nil || !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecode_ConcurrentRequiresConcurrencyLimit(t *testing.T) {
	yaml := `
StashConfig:
  Name: D
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
  Sequences:
    - Name: A
      Type: Concurrent
      Requests:
        - R: {Method: GET, URLPath: /a}
`
	root, _ := valuetree.FromYAML([]byte(yaml))
	_, err := Decode(root)
	if err == nil || !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolve_ForcedOverridesBody(t *testing.T) {
	yaml := `
StashConfig:
  Name: F
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
    Body: {team: blue}
  Forced:
    Body: {team: green}
  Sequences:
    - Name: A
      Type: Sequential
      Requests:
        - R: {Method: POST, URLPath: /a}
`
	doc := mustDecode(t, yaml)
	res, err := Resolve(doc, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	body := res.Plan.Sequences[0].Requests[0].Body
	m, _ := body.AsMapping()
	v, _ := m.Get("team")
	s, _ := v.AsString()
	if s != "green" {
		t.Fatalf("expected forced override, got %q", s)
	}
}

func TestResolve_RequestOverridesDefaultsButNotForced(t *testing.T) {
	yaml := `
StashConfig:
  Name: F
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
    Headers: {A: base, B: base}
  Forced:
    Headers: {B: forced}
  Sequences:
    - Name: S
      Type: Sequential
      Requests:
        - R:
            Method: GET
            URLPath: /a
            Headers: {A: req, C: req}
`
	doc := mustDecode(t, yaml)
	res, err := Resolve(doc, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	h, _ := res.Plan.Sequences[0].Requests[0].Headers.AsMapping()
	a, _ := h.Get("A")
	as, _ := a.AsString()
	b, _ := h.Get("B")
	bs, _ := b.AsString()
	c, ok := h.Get("C")
	if as != "req" {
		t.Errorf("expected request value to win over defaults for A, got %q", as)
	}
	if bs != "forced" {
		t.Errorf("expected forced value to win for B, got %q", bs)
	}
	if !ok {
		t.Errorf("expected C present from request section (base replaces wholesale when request section present)")
	}
	cs, _ := c.AsString()
	if cs != "req" {
		t.Errorf("got %q", cs)
	}
}

func TestResolve_RetryPrecedence_RequestWins(t *testing.T) {
	yaml := `
StashConfig:
  Name: F
  Retry: {Attempts: 5, BackoffStrategy: fixed, BackoffSeconds: 1}
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
    Retry: {Attempts: 3, BackoffStrategy: fixed, BackoffSeconds: 1}
  Sequences:
    - Name: S
      Type: Sequential
      Requests:
        - R:
            Method: GET
            URLPath: /a
            Retry: {Attempts: 2, BackoffStrategy: fixed, BackoffSeconds: 1}
`
	doc := mustDecode(t, yaml)
	res, err := Resolve(doc, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	p := res.Plan.Sequences[0].Requests[0].Retry
	if p == nil || p.Attempts != 2 {
		t.Fatalf("expected request-level retry to win, got %+v", p)
	}
}

func TestResolve_RetryPrecedence_ExplicitNullDisables(t *testing.T) {
	yaml := `
StashConfig:
  Name: F
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
    Retry: {Attempts: 3, BackoffStrategy: fixed, BackoffSeconds: 1}
  Sequences:
    - Name: S
      Type: Sequential
      Requests:
        - R:
            Method: GET
            URLPath: /a
            Retry: null
        - R2:
            Method: GET
            URLPath: /b
`
	doc := mustDecode(t, yaml)
	res, err := Resolve(doc, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Plan.Sequences[0].Requests[0].Retry != nil {
		t.Fatalf("expected explicit null to disable retries")
	}
	if res.Plan.Sequences[0].Requests[1].Retry == nil {
		t.Fatalf("expected second request to inherit Defaults retry")
	}
}

func TestResolve_FlowControl_FieldwiseOverlay(t *testing.T) {
	yaml := `
StashConfig:
  Name: F
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 2, TimeoutSeconds: 10}
  Sequences:
    - Name: S
      Type: Sequential
      Requests:
        - R:
            Method: GET
            URLPath: /a
            FlowControl: {TimeoutSeconds: 30}
`
	doc := mustDecode(t, yaml)
	res, err := Resolve(doc, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	fc := res.Plan.Sequences[0].Requests[0].FlowControl
	if fc.DelaySeconds != 2 || fc.TimeoutSeconds != 30 {
		t.Fatalf("got %+v", fc)
	}
}

func TestDecode_UnknownDynamicPattern(t *testing.T) {
	yaml := `
StashConfig:
  Name: F
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 1}
    Headers:
      X:
        $dynamic: nope
  Sequences:
    - Name: S
      Type: Sequential
      Requests:
        - R: {Method: GET, URLPath: /a}
dynamics:
  patterns:
    other: {template: "${hex:4}"}
`
	root, _ := valuetree.FromYAML([]byte(yaml))
	_, err := Decode(root)
	if err == nil || !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// TestResolve_ResolvedDocumentReValidates confirms the emitted resolved
// document mirrors the authored structure closely enough that Decode
// accepts it unchanged (§4.4, §8 testable property #1): Sequences must come
// back as a list, and each sequence must still carry its Name.
func TestResolve_ResolvedDocumentReValidates(t *testing.T) {
	yaml := `
StashConfig:
  Name: RoundTrip
  Defaults:
    URLRoot: https://x/y
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: First
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health}
        - Pong: {Method: GET, URLPath: /ready, Retry: {Attempts: 3, BackoffStrategy: exponential, BackoffSeconds: 0.5, RetryOnStatus: [500, 503]}}
    - Name: Second
      Type: Concurrent
      ConcurrencyLimit: 2
      Requests:
        - Burst: {Method: POST, URLPath: /burst}
`
	doc := mustDecode(t, yaml)
	res, err := Resolve(doc, doc.Sets, nil, true)
	if err != nil {
		t.Fatal(err)
	}

	rootMap, ok := res.Resolved.AsMapping()
	if !ok {
		t.Fatal("resolved root must be a mapping")
	}
	stashVal, _ := rootMap.Get("StashConfig")
	stash, _ := stashVal.AsMapping()
	sequencesVal, _ := stash.Get("Sequences")
	if _, ok := sequencesVal.AsSequence(); !ok {
		t.Fatalf("resolved StashConfig.Sequences must be a sequence, got kind %v", sequencesVal.Kind)
	}

	reDoc, err := Decode(res.Resolved)
	if err != nil {
		t.Fatalf("resolved document failed to re-validate: %v", err)
	}
	if len(reDoc.Sequences) != 2 {
		t.Fatalf("expected 2 sequences after re-decode, got %d", len(reDoc.Sequences))
	}
	if reDoc.Sequences[0].Name != "First" || reDoc.Sequences[1].Name != "Second" {
		t.Fatalf("sequence names not preserved across resolve/re-decode: %+v", reDoc.Sequences)
	}
	if reDoc.Sequences[1].ConcurrencyLimit != 2 {
		t.Fatalf("expected ConcurrencyLimit preserved, got %+v", reDoc.Sequences[1])
	}

	pongRetry := reDoc.Sequences[0].Requests[1].Retry
	if !pongRetry.Present || pongRetry.Value.IsNull() {
		t.Fatalf("expected Pong's resolved Retry to re-decode as present, got %+v", pongRetry)
	}
	rePolicy, err := buildRetryPolicy(pongRetry.Value, "re-decoded")
	if err != nil {
		t.Fatal(err)
	}
	if rePolicy.Attempts != 3 || !rePolicy.RetryOnStatus[500] || !rePolicy.RetryOnStatus[503] {
		t.Fatalf("retry fields lost across resolve/re-decode: %+v", rePolicy)
	}
}

func TestDecode_ResponseFormat(t *testing.T) {
	yaml := `
StashConfig:
  Name: Mini
  Defaults:
    URLRoot: https://x/y
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health, Response: {PrettyPrint: true, Sort: true}}
`
	doc := mustDecode(t, yaml)
	rf := doc.Sequences[0].Requests[0].Response
	if !rf.PrettyPrint || !rf.Sort {
		t.Fatalf("got %+v", rf)
	}
}

func TestResolve_ResponseFormat_SurvivesRoundTrip(t *testing.T) {
	yaml := `
StashConfig:
  Name: Mini
  Defaults:
    URLRoot: https://x/y
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health, Response: {PrettyPrint: true, Sort: true}}
        - Pong: {Method: GET, URLPath: /ready}
`
	doc := mustDecode(t, yaml)
	res, err := Resolve(doc, doc.Sets, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	eff := res.Plan.Sequences[0].Requests[0]
	if !eff.Response.PrettyPrint || !eff.Response.Sort {
		t.Fatalf("got %+v", eff.Response)
	}
	if res.Plan.Sequences[0].Requests[1].Response != (ResponseFormat{}) {
		t.Fatalf("expected Pong's Response to stay zero-value, got %+v", res.Plan.Sequences[0].Requests[1].Response)
	}

	reDoc, err := Decode(res.Resolved)
	if err != nil {
		t.Fatalf("resolved document failed to re-validate: %v", err)
	}
	reRf := reDoc.Sequences[0].Requests[0].Response
	if !reRf.PrettyPrint || !reRf.Sort {
		t.Fatalf("Response fields lost across resolve/re-decode: %+v", reRf)
	}
	if reDoc.Sequences[0].Requests[1].Response != (ResponseFormat{}) {
		t.Fatalf("expected Pong's re-decoded Response to stay zero-value, got %+v", reDoc.Sequences[0].Requests[1].Response)
	}
}
