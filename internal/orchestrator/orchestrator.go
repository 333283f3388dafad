// Package orchestrator implements the Run Orchestrator (§4.9): composes
// the Config Resolver, Sequence Scheduler, Request Executor, and Artifact
// Writer, owns the run directory, and returns the exit classification
// (§7). Grounded on runpipe/config's BuildPipeline + the teacher's
// top-level `Run` entrypoint that wires a built pipeline to its observer.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/payloadstash/payloadstash/internal/apperr"
	"github.com/payloadstash/payloadstash/internal/artifact"
	"github.com/payloadstash/payloadstash/internal/executor"
	"github.com/payloadstash/payloadstash/internal/resolveconfig"
	"github.com/payloadstash/payloadstash/internal/schedule"
	"github.com/payloadstash/payloadstash/internal/secretsfile"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

// Exit codes (§6 "CLI surface").
const (
	ExitSuccess          = 0
	ExitRequestFailure   = 1
	ExitValidationOrIO   = 9
)

// Options configures one invocation of the core against a config file.
type Options struct {
	ConfigPath  string
	OutDir      string
	SecretsPath string
	DryRun      bool
	// SkipExecution, when true, resolves the document and writes the
	// resolved config but performs no dispatch and writes no results CSV
	// or log; used by the `validate`/`resolve` CLI subcommands (§6).
	SkipExecution bool
	Now           func() time.Time // injectable for tests; defaults to time.Now
}

// Result summarizes one run for the CLI layer.
type Result struct {
	ExitCode int
	RunDir   string
}

// Run executes the full pipeline for one configuration document.
func Run(ctx context.Context, opts Options) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	data, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return nil, apperr.NewOutput("read config", err)
	}

	root, err := valuetree.FromYAML(data)
	if err != nil {
		return nil, apperr.NewValidation("", err.Error())
	}

	doc, err := resolveconfig.Decode(root)
	if err != nil {
		return nil, err
	}

	// redact only applies when nothing will actually be dispatched
	// (validate/resolve, SkipExecution true): §4.2 says a missing secret
	// redacts rather than fails there. run always sends real requests, so a
	// missing secret must fail resolution outright rather than substitute
	// the redaction sentinel into a live HTTP call.
	redact := opts.SkipExecution && opts.SecretsPath == ""
	var secrets map[string]string
	if opts.SecretsPath != "" {
		s, err := secretsfile.Load(opts.SecretsPath)
		if err != nil {
			return nil, apperr.NewOutput("read secrets", err)
		}
		secrets = s
	}

	resolved, err := resolveconfig.Resolve(doc, doc.Sets, secrets, redact)
	if err != nil {
		return nil, err
	}

	runTimestamp := now().UTC().Format("2006-01-02T15-04-05Z")
	runDir := artifact.RunDir(opts.OutDir, doc.Name, runTimestamp)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, apperr.NewOutput("create run directory", err)
	}

	configBasename := strings.TrimSuffix(filepath.Base(opts.ConfigPath), filepath.Ext(opts.ConfigPath))

	resolvedYAML, err := valuetree.ToYAML(resolved.Resolved)
	if err != nil {
		return nil, apperr.NewOutput("serialize resolved config", err)
	}
	if err := os.WriteFile(artifact.ResolvedConfigPath(runDir, configBasename), resolvedYAML, 0o644); err != nil {
		return nil, apperr.NewOutput("write resolved config", err)
	}

	if opts.SkipExecution {
		return &Result{ExitCode: ExitSuccess, RunDir: runDir}, nil
	}

	logger, err := artifact.NewLogger(artifact.LogPath(runDir, configBasename))
	if err != nil {
		return nil, apperr.NewOutput("open log", err)
	}
	defer logger.Close()

	logger.RunStart(doc.Name, runTimestamp)

	results := artifact.NewResultsWriter()
	client := resty.New()

	var anyFailed int32
	handle := func(ctx context.Context, eff resolveconfig.EffectiveRequest) {
		start := now().UTC()
		logger.RequestStart(eff.SequenceName, eff.SequenceIndex, eff.RequestKey, eff.RequestIndex)

		var status int
		var bodyBytes []byte
		var contentType string
		var elapsedMs int64
		var attempts int

		if opts.DryRun {
			status, attempts = 0, 0
			bodyBytes = []byte(fmt.Sprintf("dry-run: would %s %s%s", eff.Method, eff.URLRoot, eff.URLPath))
			contentType = "text/plain"
		} else {
			res := executor.Execute(ctx, client, resolved.Resolver, eff, func(nextAttempt int, wait time.Duration) {
				logger.RetryWait(eff.SequenceName, eff.RequestKey, nextAttempt, wait, "retryable outcome")
			})
			status, bodyBytes, contentType, elapsedMs, attempts = res.Status, res.BodyBytes, res.ContentType, res.ElapsedMs, res.Attempts
			if len(bodyBytes) == 0 {
				bodyBytes = []byte(fmt.Sprintf("no response body (status %d)", status))
			}
		}

		if status != 200 {
			atomic.StoreInt32(&anyFailed, 1)
		}

		bodyBytes = artifact.FormatResponse(bodyBytes, contentType, eff.Response.PrettyPrint, eff.Response.Sort)

		ext := artifact.ExtensionFor(contentType, status)
		path := artifact.ResponsePath(runDir, eff.SequenceIndex, eff.SequenceName, eff.RequestIndex, eff.RequestKey, ext)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.NonFatalError(eff.SequenceName, eff.RequestKey, err.Error())
		} else if err := os.WriteFile(path, bodyBytes, 0o644); err != nil {
			logger.NonFatalError(eff.SequenceName, eff.RequestKey, err.Error())
		}

		results.Add(artifact.ResultRow{
			SequenceIndex: eff.SequenceIndex,
			RequestIndex:  eff.RequestIndex,
			SequenceName:  eff.SequenceName,
			RequestKey:    eff.RequestKey,
			Timestamp:     start.Format(time.RFC3339),
			Status:        status,
			DurationMs:    elapsedMs,
			Attempts:      attempts,
		})
		logger.RequestComplete(eff.SequenceName, eff.SequenceIndex, eff.RequestKey, eff.RequestIndex, status, elapsedMs, attempts)
	}

	sched := schedule.NewScheduler(resolved.Plan)
	if err := sched.Run(ctx, handle); err != nil {
		return nil, apperr.NewOutput("run sequences", err)
	}

	if err := results.Flush(artifact.ResultsCSVPath(runDir, configBasename)); err != nil {
		return nil, apperr.NewOutput("write results csv", err)
	}

	exitCode := ExitSuccess
	if !opts.DryRun && atomic.LoadInt32(&anyFailed) == 1 {
		exitCode = ExitRequestFailure
	}
	logger.RunEnd(doc.Name, exitCode)

	return &Result{ExitCode: exitCode, RunDir: runDir}, nil
}
