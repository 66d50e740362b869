package update

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tnicklin/update_gate/clock"
)

type fakeEvaluator struct {
	mu    sync.Mutex
	times []time.Time
	out   Decision
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, now time.Time) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = append(f.times, now)
	return f.out
}

func (f *fakeEvaluator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.times)
}

func TestPollerEvaluatesOnStartAndTick(t *testing.T) {
	eval := &fakeEvaluator{out: Decision{Checked: true, ShouldNotify: true, Classification: Optional}}
	clk := clock.NewManual(testNow)

	var (
		mu        sync.Mutex
		decisions []Decision
	)
	poller := NewPoller(PollerParams{
		Config: Config{PollInterval: 10 * time.Millisecond},
		Gate:   eval,
		Clock:  clk,
		OnCheck: func(d Decision) {
			mu.Lock()
			decisions = append(decisions, d)
			mu.Unlock()
		},
	})

	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for eval.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for ticks, got %d evaluations", eval.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	poller.Stop()

	eval.mu.Lock()
	first := eval.times[0]
	eval.mu.Unlock()
	if !first.Equal(testNow) {
		t.Fatalf("expected evaluation at clock time %s, got %s", testNow, first)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(decisions) < 3 {
		t.Fatalf("expected OnCheck for every checked decision, got %d", len(decisions))
	}
}

func TestPollerSkipsOnCheckWhenGated(t *testing.T) {
	eval := &fakeEvaluator{}
	called := false
	poller := NewPoller(PollerParams{
		Config:  Config{PollInterval: time.Hour},
		Gate:    eval,
		OnCheck: func(Decision) { called = true },
	})

	poller.pollOnce(context.Background())

	if eval.count() != 1 {
		t.Fatalf("expected one evaluation, got %d", eval.count())
	}
	if called {
		t.Fatal("expected OnCheck to be skipped for a gated decision")
	}
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	eval := &fakeEvaluator{}
	poller := NewPoller(PollerParams{Config: Config{PollInterval: time.Hour}, Gate: eval})

	ctx, cancel := context.WithCancel(context.Background())
	if err := poller.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	select {
	case <-poller.done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit after cancel")
	}
}

func TestPollerRequiresGate(t *testing.T) {
	if err := NewPoller(PollerParams{}).Start(context.Background()); err == nil {
		t.Fatal("expected error without gate")
	}
}
