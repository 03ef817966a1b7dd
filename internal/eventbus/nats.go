package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// NATSConfig configures the optional NATS-backed publisher.
type NATSConfig struct {
	URL        string // e.g. "nats://127.0.0.1:4222"
	SubjectFmt string // e.g. "memoryd.%s.%s" formatted with (repoId, eventType); defaults to "memoryd.events.%[2]s"
}

// NATS publishes memory events onto a NATS subject per event, so any number
// of host-side consumers can subscribe without the memory subsystem knowing
// about them. Subjects are "memoryd.events.<type>" by default (see
// pkg/mcp/sse.go's "operations.<owner>.<id>.<type>" convention this mirrors).
type NATS struct {
	conn       *nats.Conn
	subjectFmt string
}

// NewNATS connects to cfg.URL and returns a ready-to-use publisher.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, memory.NewError(memory.KindConfigError, "nats url is required", nil)
	}
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, memory.NewError(memory.KindBackendIO, "connecting to nats", err)
	}
	subjectFmt := cfg.SubjectFmt
	if subjectFmt == "" {
		subjectFmt = "memoryd.events.%[2]s"
	}
	return &NATS{conn: conn, subjectFmt: subjectFmt}, nil
}

// Publish implements memory.Bus. Marshal failures and publish errors are
// swallowed: the event bus is a best-effort notification channel, never a
// dependency of the write path it's reporting on.
func (n *NATS) Publish(e memory.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	subject := fmt.Sprintf(n.subjectFmt, e.RunID, string(e.Type))
	_ = n.conn.Publish(subject, data)
}

// Close drains and closes the underlying NATS connection.
func (n *NATS) Close() {
	n.conn.Close()
}
