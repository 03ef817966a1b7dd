package memory

import "time"

// EventKind enumerates the closed set of event kinds the memory subsystem
// emits to the host event bus (§6.3). Each kind carries its own typed
// payload struct rather than an untyped map, trading flexibility for
// compile-time checked handlers.
type EventKind string

const (
	EventMemoryRedaction           EventKind = "MemoryRedaction"
	EventVectorSearchFailed        EventKind = "VectorSearchFailed"
	EventVectorSearchFailedFallback EventKind = "VectorSearchFailedFallback"
	EventMemoryStalenessReconciled EventKind = "MemoryStalenessReconciled"
	EventMemoryPurgeCompleted      EventKind = "MemoryPurgeCompleted"
)

// RedactionPayload is carried by EventMemoryRedaction.
type RedactionPayload struct {
	Count   int    `json:"count"`
	Context string `json:"context"`
}

// ReconciliationPayload is carried by EventMemoryStalenessReconciled.
type ReconciliationPayload struct {
	RepoID            string `json:"repoId"`
	MarkedStaleCount   int    `json:"markedStaleCount"`
	ClearedStaleCount  int    `json:"clearedStaleCount"`
}

// PurgePayload is carried by EventMemoryPurgeCompleted.
type PurgePayload struct {
	PurgedCount         int            `json:"purgedCount"`
	PurgedByType        map[string]int `json:"purgedByType"`
	PurgedBySensitivity map[string]int `json:"purgedBySensitivity"`
	PurgedAt            int64          `json:"purgedAt"`
	Errors              []string       `json:"errors,omitempty"`
}

// SearchFallbackPayload is carried by EventVectorSearchFailed /
// EventVectorSearchFailedFallback.
type SearchFallbackPayload struct {
	RepoID string `json:"repoId"`
	Reason string `json:"reason"`
}

// Event is the envelope every event kind is wrapped in before it reaches
// the bus; mirrors the "schemaVersion/type/timestamp/runId/payload" shape
// from §6.3.
type Event struct {
	SchemaVersion string    `json:"schemaVersion"`
	Type          EventKind `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	RunID         string    `json:"runId"`
	Payload       any       `json:"payload"`
}

// NewEvent builds an Event envelope with schemaVersion fixed at "1".
func NewEvent(kind EventKind, runID string, payload any) Event {
	return Event{
		SchemaVersion: "1",
		Type:          kind,
		Timestamp:     time.Now(),
		RunID:         runID,
		Payload:       payload,
	}
}

// Bus is the host event bus this subsystem emits onto. The concrete
// implementations live in internal/eventbus.
type Bus interface {
	Publish(Event)
}

// NopBus discards every event; used where the caller hasn't wired a bus.
type NopBus struct{}

func (NopBus) Publish(Event) {}
