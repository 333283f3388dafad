package retry

import (
	"testing"
)

func TestWait_FullJitter_Bounded(t *testing.T) {
	p := &Policy{BackoffStrategy: BackoffFixed, BackoffSeconds: 10, Jitter: JitterFull}
	rnd := newRand(1, 2)
	for i := 0; i < 50; i++ {
		w := p.Wait(2, rnd)
		if w < 0 || w > 10_000_000_000 {
			t.Fatalf("full jitter wait out of bounds: %v", w)
		}
	}
}

func TestWait_EqualJitter_Bounded(t *testing.T) {
	p := &Policy{BackoffStrategy: BackoffFixed, BackoffSeconds: 10, Jitter: JitterEqual}
	rnd := newRand(3, 4)
	for i := 0; i < 50; i++ {
		w := p.Wait(2, rnd)
		if w < 5_000_000_000 || w > 10_000_000_000 {
			t.Fatalf("equal jitter wait out of bounds: %v", w)
		}
	}
}

func TestWait_NoJitter_Exact(t *testing.T) {
	p := &Policy{BackoffStrategy: BackoffFixed, BackoffSeconds: 3, Jitter: JitterNone}
	if w := p.Wait(2, nil); w != 3_000_000_000 {
		t.Errorf("expected exact 3s wait, got %v", w)
	}
}
