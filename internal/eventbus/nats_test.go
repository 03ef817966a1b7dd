package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATSPublishDeliversEventOnSubject(t *testing.T) {
	server := startTestNATSServer(t)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgCh := make(chan *nats.Msg, 1)
	subscription, err := sub.ChanSubscribe("memoryd.events.MemoryPurgeCompleted", msgCh)
	require.NoError(t, err)
	defer subscription.Unsubscribe()

	bus, err := NewNATS(NATSConfig{URL: server.ClientURL()})
	require.NoError(t, err)
	defer bus.Close()

	bus.Publish(memory.NewEvent(memory.EventMemoryPurgeCompleted, "run1", memory.PurgePayload{PurgedCount: 5}))

	select {
	case msg := <-msgCh:
		var decoded memory.Event
		require.NoError(t, json.Unmarshal(msg.Data, &decoded))
		if decoded.Type != memory.EventMemoryPurgeCompleted {
			t.Fatalf("unexpected event type: %s", decoded.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for nats delivery")
	}
}

func TestNewNATSRequiresURL(t *testing.T) {
	if _, err := NewNATS(NATSConfig{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}
