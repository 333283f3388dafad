// Package executor implements the Request Executor (§4.7): assembles one
// HTTP call from an effective request, resolves any remaining deferred
// markers immediately before send, and wraps the send in the Retry
// Controller. Grounded on runpipe/httpstages' resty-based stage, which
// builds one resty.Request per invocation and reads status/body off the
// resty.Response rather than the raw net/http round tripper.
package executor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/payloadstash/payloadstash/internal/operator"
	"github.com/payloadstash/payloadstash/internal/resolveconfig"
	"github.com/payloadstash/payloadstash/internal/retry"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

// Result is the executor's final outcome for one effective request, after
// all retry attempts (§4.7 step 6, extended with the attempt count the
// Artifact Writer needs for the results CSV).
type Result struct {
	Status      int
	BodyBytes   []byte
	ContentType string
	ElapsedMs   int64
	Attempts    int
}

// WaitObserver is notified before each retry sleep; used by the Artifact
// Writer to log "retry-wait" decisions (§4.8).
type WaitObserver func(nextAttempt int, wait time.Duration)

// Execute runs eff to completion: one or more attempts per eff.Retry,
// resolving deferred values afresh before every attempt (§9 "Mutation
// model": the late resolver must produce fresh values per attempt).
func Execute(ctx context.Context, client *resty.Client, resolver *operator.Resolver, eff resolveconfig.EffectiveRequest, onWait WaitObserver) Result {
	var last attemptOutcome
	attempt := func(ctx context.Context, n int) retry.Outcome {
		last = sendOnce(ctx, client, resolver, eff)
		return retry.Outcome{
			Status:       last.status,
			NetworkError: last.networkError,
			TimedOut:     last.timedOut,
		}
	}
	res := retry.Execute(ctx, eff.Retry, attempt, nil, nil, onWait)
	return Result{
		Status:      last.status,
		BodyBytes:   last.bodyBytes,
		ContentType: last.contentType,
		ElapsedMs:   last.elapsedMs,
		Attempts:    res.Attempts,
	}
}

type attemptOutcome struct {
	status       int
	bodyBytes    []byte
	contentType  string
	elapsedMs    int64
	networkError bool
	timedOut     bool
}

func sendOnce(ctx context.Context, client *resty.Client, resolver *operator.Resolver, eff resolveconfig.EffectiveRequest) attemptOutcome {
	headers, err := resolver.ResolveDeferredTree(eff.Headers)
	if err != nil {
		return attemptOutcome{status: -1, networkError: true}
	}
	body, err := resolver.ResolveDeferredTree(eff.Body)
	if err != nil {
		return attemptOutcome{status: -1, networkError: true}
	}
	query, err := resolver.ResolveDeferredTree(eff.Query)
	if err != nil {
		return attemptOutcome{status: -1, networkError: true}
	}

	headerMap, contentType := normalizeHeaders(headers)

	url := buildURL(eff.URLRoot, eff.URLPath)

	timeout := time.Duration(eff.FlowControl.TimeoutSeconds) * time.Second
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := client.R().SetContext(reqCtx)
	for k, v := range headerMap {
		req.SetHeader(k, v)
	}

	if q, ok := query.AsMapping(); ok {
		for _, k := range q.Keys() {
			v, _ := q.Get(k)
			if s, ok := valuetree.StringOf(v); ok {
				req.SetQueryParam(k, s)
			}
		}
	}

	if body != nil && !body.IsNull() {
		if isJSONContentType(contentType) {
			req.SetHeader("Content-Type", "application/json")
			req.SetBody(valuetree.ToNative(body))
		} else if s, ok := body.AsString(); ok {
			req.SetBody(s)
		} else {
			raw, _ := json.Marshal(valuetree.ToNative(body))
			req.SetBody(raw)
		}
	}

	start := time.Now()
	resp, err := req.Execute(eff.Method, url)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		timedOut := reqCtx.Err() == context.DeadlineExceeded
		return attemptOutcome{
			status:       -1,
			elapsedMs:    elapsed,
			networkError: !timedOut,
			timedOut:     timedOut,
		}
	}

	return attemptOutcome{
		status:      resp.StatusCode(),
		bodyBytes:   resp.Body(),
		contentType: resp.Header().Get("Content-Type"),
		elapsedMs:   elapsed,
	}
}

// buildURL implements §4.7 step 2.
func buildURL(urlRoot, urlPath string) string {
	return strings.TrimRight(urlRoot, "/") + "/" + strings.TrimLeft(urlPath, "/")
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "json")
}

// normalizeHeaders applies headers case-insensitively with last-write-wins
// (§4.7 step 4) and extracts the effective Content-Type, if any.
func normalizeHeaders(headers *valuetree.Value) (map[string]string, string) {
	out := map[string]string{}
	canon := map[string]string{} // lower(key) -> canonical cased key last written
	if m, ok := headers.AsMapping(); ok {
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			s, ok := valuetree.StringOf(v)
			if !ok {
				continue
			}
			lower := strings.ToLower(k)
			if existing, ok := canon[lower]; ok {
				delete(out, existing)
			}
			canon[lower] = k
			out[k] = s
		}
	}
	contentType := ""
	if k, ok := canon["content-type"]; ok {
		contentType = out[k]
	}
	return out, contentType
}
