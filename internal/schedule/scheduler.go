// Package schedule implements the Sequence Scheduler (§4.6): iterates
// sequences in authored order, dispatching each sequence's requests either
// strictly in order or through a bounded concurrent worker group.
// The sequential path follows runpipe/pipeline's in-order run loop; the
// concurrent path uses errgroup.SetLimit to cap simultaneous in-flight work.
package schedule

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/payloadstash/payloadstash/internal/resolveconfig"
)

// Handler executes one effective request and records its outcome. It never
// returns an error: per-request failures are non-fatal and surface only
// through the results artifacts (§7 "Propagation policy").
type Handler func(ctx context.Context, eff resolveconfig.EffectiveRequest)

// Scheduler drives a resolved Plan through a Handler.
type Scheduler struct {
	Plan  *resolveconfig.Plan
	Sleep func(time.Duration) // injectable for tests; defaults to time.Sleep
}

// NewScheduler returns a Scheduler for plan.
func NewScheduler(plan *resolveconfig.Plan) *Scheduler {
	return &Scheduler{Plan: plan, Sleep: time.Sleep}
}

// Run executes every sequence in authored order (§4.6, §5 "Ordering
// guarantees"): sequence k+1 begins only after every request of sequence k
// has reached a terminal outcome.
func (s *Scheduler) Run(ctx context.Context, handle Handler) error {
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for i, seq := range s.Plan.Sequences {
		if i > 0 && seq.DelaySeconds > 0 {
			sleep(time.Duration(seq.DelaySeconds) * time.Second)
		}
		switch seq.Type {
		case resolveconfig.Sequential:
			runSequential(ctx, seq, handle, sleep)
		case resolveconfig.Concurrent:
			if err := runConcurrent(ctx, seq, handle); err != nil {
				return err
			}
		}
	}
	return nil
}

func runSequential(ctx context.Context, seq resolveconfig.SequencePlan, handle Handler, sleep func(time.Duration)) {
	for ri, req := range seq.Requests {
		if ri > 0 && req.FlowControl.DelaySeconds > 0 {
			sleep(time.Duration(req.FlowControl.DelaySeconds) * time.Second)
		}
		handle(ctx, req)
	}
}

func runConcurrent(ctx context.Context, seq resolveconfig.SequencePlan, handle Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seq.ConcurrencyLimit)
	for _, req := range seq.Requests {
		req := req
		g.Go(func() error {
			handle(gctx, req)
			return nil
		})
	}
	return g.Wait()
}
