package resolveconfig

import (
	"fmt"
	"sort"

	"github.com/payloadstash/payloadstash/internal/dynamic"
	"github.com/payloadstash/payloadstash/internal/operator"
	"github.com/payloadstash/payloadstash/internal/retry"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

// EffectiveRequest is §3's "Effective request": the fully merged,
// operator-resolved (modulo deferred markers) specification for one HTTP
// call. Identity is (SequenceIndex, RequestIndex), both 1-based.
type EffectiveRequest struct {
	SequenceName  string
	SequenceIndex int
	RequestKey    string
	RequestIndex  int
	Method        string
	URLRoot       string
	URLPath       string
	Headers       *valuetree.Value
	Body          *valuetree.Value
	Query         *valuetree.Value
	FlowControl   FlowControl
	Retry         *retry.Policy
	Response      ResponseFormat
}

// SequencePlan is one resolved sequence: its dispatch mode and its
// effective requests in authored order.
type SequencePlan struct {
	Name             string
	Index            int
	Type             SequenceType
	ConcurrencyLimit int
	Requests         []EffectiveRequest
	DelaySeconds     int // Defaults.FlowControl.DelaySeconds, the inter-sequence delay
}

// Plan is the complete in-memory request plan the Sequence Scheduler
// consumes (§2 "resolved tree persisted + in-memory request plan").
type Plan struct {
	Name      string
	Sequences []SequencePlan
}

// Result bundles the in-memory Plan with the resolved document tree that
// gets serialized to `<config-basename>-resolved.yml` (§6).
type Result struct {
	Plan     *Plan
	Resolved *valuetree.Value
	Resolver *operator.Resolver // kept alive for late deferred resolution at send time
}

// Resolve runs the full Config Resolver (§4.4) over doc: schema validation
// has already happened in Decode; this computes per-request merges,
// URLRoot/FlowControl propagation, Retry precedence, and operator
// resolution, and builds both the in-memory Plan and resolved tree.
func Resolve(doc *Document, sets dynamic.Sets, secrets dynamic.Secrets, redact bool) (*Result, error) {
	resolver := operator.NewResolver(doc.Patterns, sets, secrets, redact)

	plan := &Plan{Name: doc.Name}
	resolvedSeqs := make([]*valuetree.Value, 0, len(doc.Sequences))

	for si, seq := range doc.Sequences {
		seqIndex := si + 1
		seqPlan := SequencePlan{
			Name:             seq.Name,
			Index:            seqIndex,
			Type:             seq.Type,
			ConcurrencyLimit: seq.ConcurrencyLimit,
			DelaySeconds:     doc.Defaults.FlowControl.DelaySeconds,
		}
		resolvedRequests := valuetree.NewMapping()

		for ri, req := range seq.Requests {
			reqIndex := ri + 1
			path := fmt.Sprintf("%s.Requests[%d]", seq.Name, ri)

			headers, err := mergeSection(req.Sections.Headers, doc.Defaults.Sections.Headers, doc.Forced.Sections.Headers, path+".Headers")
			if err != nil {
				return nil, err
			}
			body, err := mergeSection(req.Sections.Body, doc.Defaults.Sections.Body, doc.Forced.Sections.Body, path+".Body")
			if err != nil {
				return nil, err
			}
			query, err := mergeSection(req.Sections.Query, doc.Defaults.Sections.Query, doc.Forced.Sections.Query, path+".Query")
			if err != nil {
				return nil, err
			}

			headers, err = resolver.Resolve(headers)
			if err != nil {
				return nil, err
			}
			body, err = resolver.Resolve(body)
			if err != nil {
				return nil, err
			}
			query, err = resolver.Resolve(query)
			if err != nil {
				return nil, err
			}

			retryPolicy, err := resolveRetryPrecedence(req.Retry, doc.Defaults.Retry, doc.Retry, path+".Retry")
			if err != nil {
				return nil, err
			}

			eff := EffectiveRequest{
				SequenceName:  seq.Name,
				SequenceIndex: seqIndex,
				RequestKey:    req.Key,
				RequestIndex:  reqIndex,
				Method:        req.Method,
				URLRoot:       doc.Defaults.URLRoot,
				URLPath:       req.URLPath,
				Headers:       headers,
				Body:          body,
				Query:         query,
				FlowControl:   effectiveFlowControl(doc.Defaults.FlowControl, req.FlowControl),
				Retry:         retryPolicy,
				Response:      req.Response,
			}
			seqPlan.Requests = append(seqPlan.Requests, eff)
			resolvedRequests.Set(req.Key, effectiveRequestToValue(eff))
		}

		plan.Sequences = append(plan.Sequences, seqPlan)

		seqOut := valuetree.NewMapping()
		seqOut.Set("Name", valuetree.String(seq.Name))
		seqOut.Set("Type", valuetree.String(sequenceTypeString(seq.Type)))
		if seq.Type == Concurrent {
			seqOut.Set("ConcurrencyLimit", valuetree.Int(int64(seq.ConcurrencyLimit)))
		}
		reqList := make([]*valuetree.Value, 0, len(seq.Requests))
		for _, k := range resolvedRequests.Keys() {
			v, _ := resolvedRequests.Get(k)
			wrapper := valuetree.NewMapping()
			wrapper.Set(k, v)
			reqList = append(reqList, &valuetree.Value{Kind: valuetree.KindMapping, Mapping: wrapper})
		}
		seqOut.Set("Requests", &valuetree.Value{Kind: valuetree.KindSequence, Sequence: reqList})
		resolvedSeqs = append(resolvedSeqs, &valuetree.Value{Kind: valuetree.KindMapping, Mapping: seqOut})
	}

	resolvedDoc := buildResolvedTree(doc, resolvedSeqs)

	return &Result{Plan: plan, Resolved: resolvedDoc, Resolver: resolver}, nil
}

func sequenceTypeString(t SequenceType) string {
	if t == Concurrent {
		return "Concurrent"
	}
	return "Sequential"
}

func effectiveRequestToValue(eff EffectiveRequest) *valuetree.Value {
	m := valuetree.NewMapping()
	m.Set("Method", valuetree.String(eff.Method))
	m.Set("URLPath", valuetree.String(eff.URLPath))
	if eff.Headers != nil {
		m.Set("Headers", eff.Headers)
	}
	if eff.Body != nil {
		m.Set("Body", eff.Body)
	}
	if eff.Query != nil {
		m.Set("Query", eff.Query)
	}
	fc := valuetree.NewMapping()
	fc.Set("DelaySeconds", valuetree.Int(int64(eff.FlowControl.DelaySeconds)))
	fc.Set("TimeoutSeconds", valuetree.Int(int64(eff.FlowControl.TimeoutSeconds)))
	m.Set("FlowControl", &valuetree.Value{Kind: valuetree.KindMapping, Mapping: fc})
	if eff.Retry != nil {
		m.Set("Retry", retryPolicyToValue(eff.Retry))
	}
	if eff.Response.PrettyPrint || eff.Response.Sort {
		resp := valuetree.NewMapping()
		resp.Set("PrettyPrint", valuetree.Bool(eff.Response.PrettyPrint))
		resp.Set("Sort", valuetree.Bool(eff.Response.Sort))
		m.Set("Response", &valuetree.Value{Kind: valuetree.KindMapping, Mapping: resp})
	}
	return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: m}
}

func retryPolicyToValue(p *retry.Policy) *valuetree.Value {
	m := valuetree.NewMapping()
	m.Set("Attempts", valuetree.Int(int64(p.Attempts)))
	strategy := "fixed"
	if p.BackoffStrategy == retry.BackoffExponential {
		strategy = "exponential"
	}
	m.Set("BackoffStrategy", valuetree.String(strategy))
	m.Set("BackoffSeconds", &valuetree.Value{Kind: valuetree.KindFloat, Float: p.BackoffSeconds})
	if p.Multiplier > 0 {
		m.Set("Multiplier", &valuetree.Value{Kind: valuetree.KindFloat, Float: p.Multiplier})
	}
	if p.MaxBackoffSeconds > 0 {
		m.Set("MaxBackoffSeconds", &valuetree.Value{Kind: valuetree.KindFloat, Float: p.MaxBackoffSeconds})
	}
	if p.MaxElapsedSeconds > 0 {
		m.Set("MaxElapsedSeconds", &valuetree.Value{Kind: valuetree.KindFloat, Float: p.MaxElapsedSeconds})
	}
	switch p.Jitter {
	case retry.JitterFull:
		m.Set("Jitter", valuetree.String("max"))
	case retry.JitterEqual:
		m.Set("Jitter", valuetree.String("min"))
	default:
		m.Set("Jitter", valuetree.Bool(false))
	}
	if len(p.RetryOnStatus) > 0 {
		statuses := make([]int, 0, len(p.RetryOnStatus))
		for s := range p.RetryOnStatus {
			statuses = append(statuses, s)
		}
		sort.Ints(statuses)
		list := make([]*valuetree.Value, len(statuses))
		for i, s := range statuses {
			list[i] = valuetree.Int(int64(s))
		}
		m.Set("RetryOnStatus", &valuetree.Value{Kind: valuetree.KindSequence, Sequence: list})
	}
	m.Set("RetryOnNetworkErrors", valuetree.Bool(p.RetryOnNetworkErrors))
	m.Set("RetryOnTimeouts", valuetree.Bool(p.RetryOnTimeouts))
	return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: m}
}

func buildResolvedTree(doc *Document, resolvedSeqs []*valuetree.Value) *valuetree.Value {
	stash := valuetree.NewMapping()
	stash.Set("Name", valuetree.String(doc.Name))

	defaults := valuetree.NewMapping()
	defaults.Set("URLRoot", valuetree.String(doc.Defaults.URLRoot))
	fc := valuetree.NewMapping()
	fc.Set("DelaySeconds", valuetree.Int(int64(doc.Defaults.FlowControl.DelaySeconds)))
	fc.Set("TimeoutSeconds", valuetree.Int(int64(doc.Defaults.FlowControl.TimeoutSeconds)))
	defaults.Set("FlowControl", &valuetree.Value{Kind: valuetree.KindMapping, Mapping: fc})
	stash.Set("Defaults", &valuetree.Value{Kind: valuetree.KindMapping, Mapping: defaults})

	stash.Set("Sequences", &valuetree.Value{Kind: valuetree.KindSequence, Sequence: resolvedSeqs})

	root := valuetree.NewMapping()
	root.Set("StashConfig", &valuetree.Value{Kind: valuetree.KindMapping, Mapping: stash})
	return &valuetree.Value{Kind: valuetree.KindMapping, Mapping: root}
}
