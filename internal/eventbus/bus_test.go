package eventbus

import (
	"sync"
	"testing"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

func TestInProcessPublishesToAllSubscribers(t *testing.T) {
	b := New()

	var mu sync.Mutex
	var received []memory.Event
	b.Subscribe(func(e memory.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})
	b.Subscribe(func(e memory.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	b.Publish(memory.NewEvent(memory.EventMemoryPurgeCompleted, "run1", memory.PurgePayload{PurgedCount: 3}))

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(received))
	}
}

func TestInProcessPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := New()
	b.Publish(memory.NewEvent(memory.EventMemoryRedaction, "", memory.RedactionPayload{Count: 1}))
}
