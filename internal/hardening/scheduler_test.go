package hardening

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/memoryd/internal/config"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

func TestSchedulerStartRunsPurgeOnInterval(t *testing.T) {
	store := newFakeEntryStore(memory.MemoryEntry{
		ID: "e1", RepoID: "repo1", Sensitivity: memory.SensitivityRestricted,
		UpdatedAt: memory.NowMillis() - int64(48*time.Hour/time.Millisecond),
	})
	purger := New(store, nil, memory.NopBus{}, defaultPolicies())
	sched := NewScheduler(purger, "repo1", config.PurgeScheduleConfig{Enabled: true, IntervalMs: 60_000})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	sched.runOnce(ctx)
	result, err := sched.LastResult()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PurgedCount != 1 {
		t.Fatalf("expected 1 purged entry, got %d", result.PurgedCount)
	}
}

func TestSchedulerStartIsNoopWhenDisabled(t *testing.T) {
	purger := New(&fakeEntryStore{}, nil, memory.NopBus{}, defaultPolicies())
	sched := NewScheduler(purger, "repo1", config.PurgeScheduleConfig{Enabled: false, IntervalMs: 60_000})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	if sched.running {
		t.Fatal("expected scheduler to stay stopped when disabled")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	purger := New(&fakeEntryStore{}, nil, memory.NopBus{}, defaultPolicies())
	sched := NewScheduler(purger, "repo1", config.PurgeScheduleConfig{Enabled: true, IntervalMs: 60_000})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	sched.Stop()
	sched.Stop()
}
