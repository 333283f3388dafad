package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/payloadstash/payloadstash/internal/resolveconfig"
)

func planWith(seqs ...resolveconfig.SequencePlan) *resolveconfig.Plan {
	return &resolveconfig.Plan{Name: "T", Sequences: seqs}
}

func effReq(seqIdx, reqIdx int, delay int) resolveconfig.EffectiveRequest {
	return resolveconfig.EffectiveRequest{
		SequenceIndex: seqIdx,
		RequestIndex:  reqIdx,
		RequestKey:    "r",
		FlowControl:   resolveconfig.FlowControl{DelaySeconds: delay},
	}
}

func TestScheduler_SequentialOrder(t *testing.T) {
	seq := resolveconfig.SequencePlan{
		Name: "S", Index: 1, Type: resolveconfig.Sequential,
		Requests: []resolveconfig.EffectiveRequest{effReq(1, 1, 0), effReq(1, 2, 0), effReq(1, 3, 0)},
	}
	var order []int
	var mu sync.Mutex
	s := NewScheduler(planWith(seq))
	s.Sleep = func(time.Duration) {}
	s.Run(context.Background(), func(ctx context.Context, eff resolveconfig.EffectiveRequest) {
		mu.Lock()
		order = append(order, eff.RequestIndex)
		mu.Unlock()
	})
	want := []int{1, 2, 3}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestScheduler_ConcurrencyCapRespected(t *testing.T) {
	reqs := make([]resolveconfig.EffectiveRequest, 10)
	for i := range reqs {
		reqs[i] = effReq(1, i+1, 0)
	}
	seq := resolveconfig.SequencePlan{Name: "C", Index: 1, Type: resolveconfig.Concurrent, ConcurrencyLimit: 3, Requests: reqs}

	var inFlight, peak int32
	var completed int32
	s := NewScheduler(planWith(seq))
	s.Run(context.Background(), func(ctx context.Context, eff resolveconfig.EffectiveRequest) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&completed, 1)
	})
	if completed != 10 {
		t.Fatalf("expected 10 completed, got %d", completed)
	}
	if peak > 3 {
		t.Fatalf("peak concurrency %d exceeds limit 3", peak)
	}
}

func TestScheduler_SequenceBarrier(t *testing.T) {
	seq1 := resolveconfig.SequencePlan{Name: "A", Index: 1, Type: resolveconfig.Concurrent, ConcurrencyLimit: 5,
		Requests: []resolveconfig.EffectiveRequest{effReq(1, 1, 0), effReq(1, 2, 0)}}
	seq2 := resolveconfig.SequencePlan{Name: "B", Index: 2, Type: resolveconfig.Sequential,
		Requests: []resolveconfig.EffectiveRequest{effReq(2, 1, 0)}}

	var seq1Done int32
	var barrierViolated bool
	s := NewScheduler(planWith(seq1, seq2))
	s.Run(context.Background(), func(ctx context.Context, eff resolveconfig.EffectiveRequest) {
		if eff.SequenceIndex == 1 {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&seq1Done, 1)
		} else {
			if atomic.LoadInt32(&seq1Done) != 2 {
				barrierViolated = true
			}
		}
	})
	if barrierViolated {
		t.Fatal("sequence 2 started before sequence 1 fully completed")
	}
}
