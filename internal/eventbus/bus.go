// Package eventbus implements the host event bus the memory subsystem
// publishes onto (spec.md §6.3): an in-process fan-out bus for tests and
// single-process hosts, plus an optional NATS-backed publisher.
package eventbus

import (
	"sync"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// Subscriber receives every event published to a Bus.
type Subscriber func(memory.Event)

// InProcess is a simple fan-out bus: every Publish call invokes every
// currently-registered subscriber synchronously, on the publishing
// goroutine. Safe for concurrent use.
type InProcess struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// New constructs an empty in-process bus.
func New() *InProcess {
	return &InProcess{}
}

// Subscribe registers fn to receive all future published events.
func (b *InProcess) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish implements memory.Bus.
func (b *InProcess) Publish(e memory.Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
