// Package resolveconfig implements the Config Resolver (§4.4): schema
// validation, per-section merge algebra, URLRoot/FlowControl propagation,
// Retry tri-state precedence, and operator resolution over the merged
// sections. It is grounded on runpipe/config/build.go's BuildPipeline,
// which walks an authored list of stage refs and resolves each against
// ambient registry/defaults to produce built stages; here the "registry"
// is Defaults/Forced and the "built stage" is an EffectiveRequest.
package resolveconfig

import (
	"fmt"

	"github.com/payloadstash/payloadstash/internal/apperr"
	"github.com/payloadstash/payloadstash/internal/dynamic"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// SequenceType distinguishes the two dispatch modes of §4.6.
type SequenceType int

const (
	Sequential SequenceType = iota
	Concurrent
)

// FlowControl is §3's `{ delay-seconds, timeout-seconds }` pair, both
// required once merged into an effective request.
type FlowControl struct {
	DelaySeconds   int
	TimeoutSeconds int
}

// FlowControlOverlay is the optional, field-wise request-level overlay of
// Defaults.FlowControl (§4.4 step 3).
type FlowControlOverlay struct {
	DelaySeconds   *int
	TimeoutSeconds *int
}

// RetrySource models the tri-state §9 "explicit null vs absent" design
// note: Present distinguishes "this level authored a Retry key at all"
// from "absent"; when Present is true and Value is nil (or a null node),
// the level's retry is the disabled sentinel.
type RetrySource struct {
	Present bool
	Value   *valuetree.Value // nil or IsNull() true means explicit disable
}

// Sections groups the three mergeable per-request value-tree sections.
type Sections struct {
	Headers *valuetree.Value
	Body    *valuetree.Value
	Query   *valuetree.Value
}

// Defaults is `StashConfig.Defaults` (§6).
type Defaults struct {
	URLRoot     string
	FlowControl FlowControl
	Sections    Sections
	Retry       RetrySource
}

// Forced is `StashConfig.Forced` (§6); it has no URLRoot or FlowControl.
type Forced struct {
	Sections Sections
	Retry    RetrySource
}

// ResponseFormat is the optional per-request `Response:` block: whether to
// pretty-print and/or sort the response body before the Artifact Writer
// writes it to disk (JSON and XML bodies only; any other content-type is
// written verbatim regardless of this setting).
type ResponseFormat struct {
	PrettyPrint bool
	Sort        bool
}

// Request is one authored `{RequestKey: Request}` item (§6).
type Request struct {
	Key         string
	Method      string
	URLPath     string
	Sections    Sections
	FlowControl FlowControlOverlay
	Retry       RetrySource
	Response    ResponseFormat
}

// Sequence is one authored sequence (§6).
type Sequence struct {
	Name             string
	Type             SequenceType
	ConcurrencyLimit int
	Requests         []Request
}

// Document is the fully decoded, schema-validated authored tree (§6, §3
// pre-resolution).
type Document struct {
	Name      string
	Defaults  Defaults
	Forced    Forced
	Retry     RetrySource // StashConfig.Retry, the top-level fallback
	Sequences []Sequence
	Patterns  dynamic.Patterns
	Sets      dynamic.Sets
}

// Decode validates and decodes the parsed document root (the value tree
// returned by valuetree.FromYAML) into a Document.
func Decode(root *valuetree.Value) (*Document, error) {
	rootMap, ok := root.AsMapping()
	if !ok {
		return nil, apperr.NewValidation("", "document root must be a mapping")
	}
	stashVal, ok := rootMap.Get("StashConfig")
	if !ok {
		return nil, apperr.NewValidation("StashConfig", "StashConfig is required")
	}
	stashMap, ok := stashVal.AsMapping()
	if !ok {
		return nil, apperr.NewValidation("StashConfig", "StashConfig must be a mapping")
	}

	doc := &Document{}

	if err := decodeStashConfig(stashMap, doc); err != nil {
		return nil, err
	}

	doc.Patterns = dynamic.Patterns{}
	doc.Sets = dynamic.Sets{}
	if dynVal, ok := rootMap.Get("dynamics"); ok && !dynVal.IsNull() {
		dynMap, ok := dynVal.AsMapping()
		if !ok {
			return nil, apperr.NewValidation("dynamics", "dynamics must be a mapping")
		}
		if err := decodeDynamics(dynMap, doc); err != nil {
			return nil, err
		}
	}

	if err := validatePatternReferences(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func decodeStashConfig(m *valuetree.Mapping, doc *Document) error {
	allowed := map[string]bool{
		"Name": true, "Defaults": true, "Forced": true, "Retry": true, "Sequences": true,
	}
	if err := rejectUnknown(m, allowed, "StashConfig"); err != nil {
		return err
	}

	nameVal, ok := m.Get("Name")
	if !ok {
		return apperr.NewValidation("StashConfig.Name", "Name is required")
	}
	name, ok := nameVal.AsString()
	if !ok || name == "" {
		return apperr.NewValidation("StashConfig.Name", "Name must be a non-empty string")
	}
	doc.Name = name

	defaultsVal, ok := m.Get("Defaults")
	if !ok {
		return apperr.NewValidation("StashConfig.Defaults", "Defaults is required")
	}
	defaultsMap, ok := defaultsVal.AsMapping()
	if !ok {
		return apperr.NewValidation("StashConfig.Defaults", "Defaults must be a mapping")
	}
	defaults, err := decodeDefaults(defaultsMap)
	if err != nil {
		return err
	}
	doc.Defaults = defaults

	if forcedVal, ok := m.Get("Forced"); ok && !forcedVal.IsNull() {
		forcedMap, ok := forcedVal.AsMapping()
		if !ok {
			return apperr.NewValidation("StashConfig.Forced", "Forced must be a mapping")
		}
		forced, err := decodeForced(forcedMap)
		if err != nil {
			return err
		}
		doc.Forced = forced
	}

	doc.Retry = decodeRetrySource(m, "Retry")
	if doc.Retry.Present && !doc.Retry.Value.IsNull() {
		if _, err := decodeRetryPolicyShape(doc.Retry.Value, "StashConfig.Retry"); err != nil {
			return err
		}
	}

	seqVal, ok := m.Get("Sequences")
	if !ok {
		return apperr.NewValidation("StashConfig.Sequences", "Sequences is required")
	}
	seqs, ok := seqVal.AsSequence()
	if !ok || len(seqs) == 0 {
		return apperr.NewValidation("StashConfig.Sequences", "Sequences must be a non-empty list")
	}
	seen := map[string]bool{}
	for i, sv := range seqs {
		seq, err := decodeSequence(sv, i+1)
		if err != nil {
			return err
		}
		if seen[seq.Name] {
			return apperr.NewValidation(fmt.Sprintf("StashConfig.Sequences[%d]", i), fmt.Sprintf("duplicate sequence name %q", seq.Name))
		}
		seen[seq.Name] = true
		doc.Sequences = append(doc.Sequences, seq)
	}
	return nil
}

func decodeDefaults(m *valuetree.Mapping) (Defaults, error) {
	allowed := map[string]bool{
		"URLRoot": true, "FlowControl": true, "Headers": true, "Body": true, "Query": true, "Retry": true,
	}
	if err := rejectUnknown(m, allowed, "StashConfig.Defaults"); err != nil {
		return Defaults{}, err
	}
	d := Defaults{}

	urlRootVal, ok := m.Get("URLRoot")
	if !ok {
		return Defaults{}, apperr.NewValidation("StashConfig.Defaults.URLRoot", "URLRoot is required")
	}
	urlRoot, ok := urlRootVal.AsString()
	if !ok || urlRoot == "" {
		return Defaults{}, apperr.NewValidation("StashConfig.Defaults.URLRoot", "URLRoot must be a non-empty string")
	}
	d.URLRoot = urlRoot

	fcVal, ok := m.Get("FlowControl")
	if !ok {
		return Defaults{}, apperr.NewValidation("StashConfig.Defaults.FlowControl", "FlowControl is required")
	}
	fcMap, ok := fcVal.AsMapping()
	if !ok {
		return Defaults{}, apperr.NewValidation("StashConfig.Defaults.FlowControl", "FlowControl must be a mapping")
	}
	fc, err := decodeFlowControl(fcMap, "StashConfig.Defaults.FlowControl")
	if err != nil {
		return Defaults{}, err
	}
	d.FlowControl = fc

	d.Sections = decodeSections(m)
	d.Retry = decodeRetrySource(m, "Retry")
	if d.Retry.Present && !d.Retry.Value.IsNull() {
		if _, err := decodeRetryPolicyShape(d.Retry.Value, "StashConfig.Defaults.Retry"); err != nil {
			return Defaults{}, err
		}
	}
	return d, nil
}

func decodeForced(m *valuetree.Mapping) (Forced, error) {
	allowed := map[string]bool{"Headers": true, "Body": true, "Query": true, "Retry": true}
	if err := rejectUnknown(m, allowed, "StashConfig.Forced"); err != nil {
		return Forced{}, err
	}
	f := Forced{Sections: decodeSections(m), Retry: decodeRetrySource(m, "Retry")}
	if f.Retry.Present && !f.Retry.Value.IsNull() {
		if _, err := decodeRetryPolicyShape(f.Retry.Value, "StashConfig.Forced.Retry"); err != nil {
			return Forced{}, err
		}
	}
	return f, nil
}

func decodeFlowControl(m *valuetree.Mapping, path string) (FlowControl, error) {
	allowed := map[string]bool{"DelaySeconds": true, "TimeoutSeconds": true}
	if err := rejectUnknown(m, allowed, path); err != nil {
		return FlowControl{}, err
	}
	delayVal, ok := m.Get("DelaySeconds")
	if !ok {
		return FlowControl{}, apperr.NewValidation(path+".DelaySeconds", "DelaySeconds is required")
	}
	delay, ok := delayVal.AsInt()
	if !ok || delay < 0 {
		return FlowControl{}, apperr.NewValidation(path+".DelaySeconds", "DelaySeconds must be an integer >= 0")
	}
	timeoutVal, ok := m.Get("TimeoutSeconds")
	if !ok {
		return FlowControl{}, apperr.NewValidation(path+".TimeoutSeconds", "TimeoutSeconds is required")
	}
	timeout, ok := timeoutVal.AsInt()
	if !ok || timeout < 0 {
		return FlowControl{}, apperr.NewValidation(path+".TimeoutSeconds", "TimeoutSeconds must be an integer >= 0")
	}
	return FlowControl{DelaySeconds: int(delay), TimeoutSeconds: int(timeout)}, nil
}

func decodeSections(m *valuetree.Mapping) Sections {
	var s Sections
	if v, ok := m.Get("Headers"); ok {
		s.Headers = v
	}
	if v, ok := m.Get("Body"); ok {
		s.Body = v
	}
	if v, ok := m.Get("Query"); ok {
		s.Query = v
	}
	return s
}

func decodeRetrySource(m *valuetree.Mapping, key string) RetrySource {
	v, ok := m.Get(key)
	if !ok {
		return RetrySource{Present: false}
	}
	return RetrySource{Present: true, Value: v}
}

func decodeSequence(v *valuetree.Value, index int) (Sequence, error) {
	path := fmt.Sprintf("StashConfig.Sequences[%d]", index-1)
	m, ok := v.AsMapping()
	if !ok {
		return Sequence{}, apperr.NewValidation(path, "sequence must be a mapping")
	}
	allowed := map[string]bool{"Name": true, "Type": true, "ConcurrencyLimit": true, "Requests": true}
	if err := rejectUnknown(m, allowed, path); err != nil {
		return Sequence{}, err
	}

	nameVal, ok := m.Get("Name")
	if !ok {
		return Sequence{}, apperr.NewValidation(path+".Name", "Name is required")
	}
	name, ok := nameVal.AsString()
	if !ok || name == "" {
		return Sequence{}, apperr.NewValidation(path+".Name", "Name must be a non-empty string")
	}

	typeVal, ok := m.Get("Type")
	if !ok {
		return Sequence{}, apperr.NewValidation(path+".Type", "Type is required")
	}
	typeStr, ok := typeVal.AsString()
	if !ok {
		return Sequence{}, apperr.NewValidation(path+".Type", "Type must be a string")
	}
	var seqType SequenceType
	switch typeStr {
	case "Sequential":
		seqType = Sequential
	case "Concurrent":
		seqType = Concurrent
	default:
		return Sequence{}, apperr.NewValidation(path+".Type", fmt.Sprintf("unknown sequence type %q", typeStr))
	}

	concLimitVal, hasConcLimit := m.Get("ConcurrencyLimit")
	concLimit := 0
	if hasConcLimit {
		n, ok := concLimitVal.AsInt()
		if !ok || n < 1 {
			return Sequence{}, apperr.NewValidation(path+".ConcurrencyLimit", "ConcurrencyLimit must be an integer >= 1")
		}
		concLimit = int(n)
	}
	if seqType == Concurrent && !hasConcLimit {
		return Sequence{}, apperr.NewValidation(path+".ConcurrencyLimit", "ConcurrencyLimit is required when Type is Concurrent")
	}
	if seqType == Sequential && hasConcLimit {
		return Sequence{}, apperr.NewValidation(path+".ConcurrencyLimit", "ConcurrencyLimit must not be present when Type is Sequential")
	}

	reqVal, ok := m.Get("Requests")
	if !ok {
		return Sequence{}, apperr.NewValidation(path+".Requests", "Requests is required")
	}
	reqList, ok := reqVal.AsSequence()
	if !ok || len(reqList) == 0 {
		return Sequence{}, apperr.NewValidation(path+".Requests", "Requests must be a non-empty list")
	}

	seq := Sequence{Name: name, Type: seqType, ConcurrencyLimit: concLimit}
	seenKeys := map[string]bool{}
	for i, rv := range reqList {
		reqPath := fmt.Sprintf("%s.Requests[%d]", path, i)
		req, err := decodeRequest(rv, reqPath)
		if err != nil {
			return Sequence{}, err
		}
		if seenKeys[req.Key] {
			return Sequence{}, apperr.NewValidation(reqPath, fmt.Sprintf("duplicate request key %q in sequence %q", req.Key, name))
		}
		seenKeys[req.Key] = true
		seq.Requests = append(seq.Requests, req)
	}
	return seq, nil
}

func decodeRequest(v *valuetree.Value, path string) (Request, error) {
	outer, ok := v.AsMapping()
	if !ok || outer.Len() != 1 {
		return Request{}, apperr.NewValidation(path, "request item must be a single-key mapping")
	}
	key := outer.Keys()[0]
	inner, _ := outer.Get(key)
	m, ok := inner.AsMapping()
	if !ok {
		return Request{}, apperr.NewValidation(path+"."+key, "request must be a mapping")
	}
	allowed := map[string]bool{
		"Method": true, "URLPath": true, "Headers": true, "Body": true,
		"Query": true, "FlowControl": true, "Retry": true, "Response": true,
	}
	if err := rejectUnknown(m, allowed, path+"."+key); err != nil {
		return Request{}, err
	}
	if m.Has("URLRoot") {
		return Request{}, apperr.NewValidation(path+"."+key+".URLRoot", "URLRoot is forbidden inside a request")
	}

	methodVal, ok := m.Get("Method")
	if !ok {
		return Request{}, apperr.NewValidation(path+"."+key+".Method", "Method is required")
	}
	method, ok := methodVal.AsString()
	if !ok || !validMethods[method] {
		return Request{}, apperr.NewValidation(path+"."+key+".Method", fmt.Sprintf("unknown method %q", method))
	}

	pathVal, ok := m.Get("URLPath")
	if !ok {
		return Request{}, apperr.NewValidation(path+"."+key+".URLPath", "URLPath is required")
	}
	urlPath, ok := pathVal.AsString()
	if !ok {
		return Request{}, apperr.NewValidation(path+"."+key+".URLPath", "URLPath must be a string")
	}

	req := Request{Key: key, Method: method, URLPath: urlPath, Sections: decodeSections(m)}
	req.Retry = decodeRetrySource(m, "Retry")
	if req.Retry.Present && !req.Retry.Value.IsNull() {
		if _, err := decodeRetryPolicyShape(req.Retry.Value, path+"."+key+".Retry"); err != nil {
			return Request{}, err
		}
	}

	if fcVal, ok := m.Get("FlowControl"); ok && !fcVal.IsNull() {
		fcMap, ok := fcVal.AsMapping()
		if !ok {
			return Request{}, apperr.NewValidation(path+"."+key+".FlowControl", "FlowControl must be a mapping")
		}
		allowedFC := map[string]bool{"DelaySeconds": true, "TimeoutSeconds": true}
		if err := rejectUnknown(fcMap, allowedFC, path+"."+key+".FlowControl"); err != nil {
			return Request{}, err
		}
		if dv, ok := fcMap.Get("DelaySeconds"); ok {
			n, ok := dv.AsInt()
			if !ok || n < 0 {
				return Request{}, apperr.NewValidation(path+"."+key+".FlowControl.DelaySeconds", "DelaySeconds must be an integer >= 0")
			}
			iv := int(n)
			req.FlowControl.DelaySeconds = &iv
		}
		if tv, ok := fcMap.Get("TimeoutSeconds"); ok {
			n, ok := tv.AsInt()
			if !ok || n < 0 {
				return Request{}, apperr.NewValidation(path+"."+key+".FlowControl.TimeoutSeconds", "TimeoutSeconds must be an integer >= 0")
			}
			iv := int(n)
			req.FlowControl.TimeoutSeconds = &iv
		}
	}

	if respVal, ok := m.Get("Response"); ok && !respVal.IsNull() {
		respMap, ok := respVal.AsMapping()
		if !ok {
			return Request{}, apperr.NewValidation(path+"."+key+".Response", "Response must be a mapping")
		}
		rf, err := decodeResponseFormat(respMap, path+"."+key+".Response")
		if err != nil {
			return Request{}, err
		}
		req.Response = rf
	}

	return req, nil
}

// decodeResponseFormat validates `{PrettyPrint, Sort}`, both optional
// booleans defaulting false. Sort without PrettyPrint still triggers
// formatting, since sorting keys/elements requires first parsing the body.
func decodeResponseFormat(m *valuetree.Mapping, path string) (ResponseFormat, error) {
	allowed := map[string]bool{"PrettyPrint": true, "Sort": true}
	if err := rejectUnknown(m, allowed, path); err != nil {
		return ResponseFormat{}, err
	}
	var rf ResponseFormat
	if v, ok := m.Get("PrettyPrint"); ok {
		b, ok := v.AsBool()
		if !ok {
			return ResponseFormat{}, apperr.NewValidation(path+".PrettyPrint", "PrettyPrint must be a boolean")
		}
		rf.PrettyPrint = b
	}
	if v, ok := m.Get("Sort"); ok {
		b, ok := v.AsBool()
		if !ok {
			return ResponseFormat{}, apperr.NewValidation(path+".Sort", "Sort must be a boolean")
		}
		rf.Sort = b
	}
	return rf, nil
}

func decodeDynamics(m *valuetree.Mapping, doc *Document) error {
	allowed := map[string]bool{"patterns": true, "sets": true}
	if err := rejectUnknown(m, allowed, "dynamics"); err != nil {
		return err
	}
	if patVal, ok := m.Get("patterns"); ok && !patVal.IsNull() {
		patMap, ok := patVal.AsMapping()
		if !ok {
			return apperr.NewValidation("dynamics.patterns", "patterns must be a mapping")
		}
		for _, name := range patMap.Keys() {
			pv, _ := patMap.Get(name)
			pm, ok := pv.AsMapping()
			if !ok {
				return apperr.NewValidation("dynamics.patterns."+name, "pattern must be a mapping")
			}
			allowedPat := map[string]bool{"template": true}
			if err := rejectUnknown(pm, allowedPat, "dynamics.patterns."+name); err != nil {
				return err
			}
			tmplVal, ok := pm.Get("template")
			if !ok {
				return apperr.NewValidation("dynamics.patterns."+name+".template", "template is required")
			}
			tmpl, ok := tmplVal.AsString()
			if !ok {
				return apperr.NewValidation("dynamics.patterns."+name+".template", "template must be a string")
			}
			doc.Patterns[name] = dynamic.Pattern{Template: tmpl}
		}
	}
	if setsVal, ok := m.Get("sets"); ok && !setsVal.IsNull() {
		setsMap, ok := setsVal.AsMapping()
		if !ok {
			return apperr.NewValidation("dynamics.sets", "sets must be a mapping")
		}
		for _, name := range setsMap.Keys() {
			sv, _ := setsMap.Get(name)
			elems, ok := sv.AsSequence()
			if !ok {
				return apperr.NewValidation("dynamics.sets."+name, "set must be a list of strings")
			}
			var list []string
			for _, e := range elems {
				s, ok := e.AsString()
				if !ok {
					return apperr.NewValidation("dynamics.sets."+name, "set elements must be strings")
				}
				list = append(list, s)
			}
			doc.Sets[name] = list
		}
	}
	return nil
}

// decodeRetryPolicyShape validates a non-null Retry mapping's field shapes
// (§6 "Retry:") without yet constructing a retry.Policy — that happens at
// merge time against the precedence-selected source (see buildRetryPolicy
// in merge.go).
func decodeRetryPolicyShape(v *valuetree.Value, path string) (*valuetree.Mapping, error) {
	m, ok := v.AsMapping()
	if !ok {
		return nil, apperr.NewValidation(path, "Retry must be a mapping or null")
	}
	allowed := map[string]bool{
		"Attempts": true, "BackoffStrategy": true, "BackoffSeconds": true, "Multiplier": true,
		"MaxBackoffSeconds": true, "MaxElapsedSeconds": true, "Jitter": true,
		"RetryOnStatus": true, "RetryOnNetworkErrors": true, "RetryOnTimeouts": true,
	}
	if err := rejectUnknown(m, allowed, path); err != nil {
		return nil, err
	}
	if attemptsVal, ok := m.Get("Attempts"); ok {
		n, ok := attemptsVal.AsInt()
		if !ok || n < 1 {
			return nil, apperr.NewValidation(path+".Attempts", "Attempts must be an integer >= 1")
		}
	} else {
		return nil, apperr.NewValidation(path+".Attempts", "Attempts is required")
	}
	if bsVal, ok := m.Get("BackoffStrategy"); ok {
		s, ok := bsVal.AsString()
		if !ok || (s != "fixed" && s != "exponential") {
			return nil, apperr.NewValidation(path+".BackoffStrategy", "BackoffStrategy must be \"fixed\" or \"exponential\"")
		}
	} else {
		return nil, apperr.NewValidation(path+".BackoffStrategy", "BackoffStrategy is required")
	}
	if bsecVal, ok := m.Get("BackoffSeconds"); ok {
		f, ok := bsecVal.AsFloat()
		if !ok || f < 0 {
			return nil, apperr.NewValidation(path+".BackoffSeconds", "BackoffSeconds must be a number >= 0")
		}
	} else {
		return nil, apperr.NewValidation(path+".BackoffSeconds", "BackoffSeconds is required")
	}
	if mv, ok := m.Get("Multiplier"); ok {
		f, ok := mv.AsFloat()
		if !ok || f <= 0 {
			return nil, apperr.NewValidation(path+".Multiplier", "Multiplier must be a number > 0")
		}
	}
	if mv, ok := m.Get("MaxBackoffSeconds"); ok {
		f, ok := mv.AsFloat()
		if !ok || f < 0 {
			return nil, apperr.NewValidation(path+".MaxBackoffSeconds", "MaxBackoffSeconds must be a number >= 0")
		}
	}
	if mv, ok := m.Get("MaxElapsedSeconds"); ok {
		f, ok := mv.AsFloat()
		if !ok || f < 0 {
			return nil, apperr.NewValidation(path+".MaxElapsedSeconds", "MaxElapsedSeconds must be a number >= 0")
		}
	}
	if jv, ok := m.Get("Jitter"); ok {
		if b, ok := jv.AsBool(); !ok {
			s, ok := jv.AsString()
			if !ok || (s != "min" && s != "max") {
				return nil, apperr.NewValidation(path+".Jitter", "Jitter must be a boolean or \"min\"/\"max\"")
			}
		} else {
			_ = b
		}
	}
	if rs, ok := m.Get("RetryOnStatus"); ok {
		elems, ok := rs.AsSequence()
		if !ok {
			return nil, apperr.NewValidation(path+".RetryOnStatus", "RetryOnStatus must be a list of integers")
		}
		for _, e := range elems {
			if _, ok := e.AsInt(); !ok {
				return nil, apperr.NewValidation(path+".RetryOnStatus", "RetryOnStatus must be a list of integers")
			}
		}
	}
	if v, ok := m.Get("RetryOnNetworkErrors"); ok {
		if _, ok := v.AsBool(); !ok {
			return nil, apperr.NewValidation(path+".RetryOnNetworkErrors", "RetryOnNetworkErrors must be a boolean")
		}
	}
	if v, ok := m.Get("RetryOnTimeouts"); ok {
		if _, ok := v.AsBool(); !ok {
			return nil, apperr.NewValidation(path+".RetryOnTimeouts", "RetryOnTimeouts must be a boolean")
		}
	}
	return m, nil
}

func rejectUnknown(m *valuetree.Mapping, allowed map[string]bool, path string) error {
	for _, k := range m.Keys() {
		if !allowed[k] {
			return apperr.NewValidation(path, fmt.Sprintf("unknown field %q", k))
		}
	}
	return nil
}

// validatePatternReferences walks every Headers/Body/Query section (request,
// Defaults, Forced) and ensures any `$dynamic` pattern name references a
// defined pattern, and that `dynamics` was authored at all if referenced
// (§7 "missing `dynamics` when `$dynamic` is used").
func validatePatternReferences(doc *Document) error {
	check := func(v *valuetree.Value) error { return checkPatternRefs(v, doc.Patterns) }
	sections := []*valuetree.Value{
		doc.Defaults.Sections.Headers, doc.Defaults.Sections.Body, doc.Defaults.Sections.Query,
		doc.Forced.Sections.Headers, doc.Forced.Sections.Body, doc.Forced.Sections.Query,
	}
	for _, s := range sections {
		if err := check(s); err != nil {
			return err
		}
	}
	for _, seq := range doc.Sequences {
		for _, req := range seq.Requests {
			for _, s := range []*valuetree.Value{req.Sections.Headers, req.Sections.Body, req.Sections.Query} {
				if err := check(s); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkPatternRefs(v *valuetree.Value, patterns dynamic.Patterns) error {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case valuetree.KindMapping:
		if v.Mapping.OperatorKey() == "$dynamic" {
			nameVal, _ := v.Mapping.Get("$dynamic")
			name, ok := nameVal.AsString()
			if !ok {
				return apperr.NewValidation("", "$dynamic pattern name must be a string")
			}
			if len(patterns) == 0 {
				return apperr.NewValidation("", fmt.Sprintf("$dynamic pattern %q referenced but no dynamics.patterns defined", name))
			}
			if _, ok := patterns[name]; !ok {
				return apperr.NewValidation("", fmt.Sprintf("unknown $dynamic pattern %q", name))
			}
			return nil
		}
		for _, k := range v.Mapping.Keys() {
			val, _ := v.Mapping.Get(k)
			if err := checkPatternRefs(val, patterns); err != nil {
				return err
			}
		}
	case valuetree.KindSequence:
		for _, e := range v.Sequence {
			if err := checkPatternRefs(e, patterns); err != nil {
				return err
			}
		}
	}
	return nil
}
