package broadcaster

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pongarena/server/protocol"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	failN    int
	attempts int
	received protocol.Envelope
}

func (f *fakeConn) Send(env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failN {
		return errors.New("boom")
	}
	f.received = env
	return nil
}

func TestBroadcaster_RetriesThenSucceeds(t *testing.T) {
	registry := NewRegistry()
	conn := &fakeConn{failN: 1}
	registry.Register("p1", conn)

	b := New(registry, zap.NewNop().Sugar(), 3, time.Millisecond)
	b.Send("p1", protocol.TypePong, protocol.PongPayload{UtcTimestamp: 1})

	assert.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.received.Type == protocol.TypePong
	}, time.Second, time.Millisecond)
}

func TestBroadcaster_DropsWhenConnectionGone(t *testing.T) {
	registry := NewRegistry()
	b := New(registry, zap.NewNop().Sugar(), 3, time.Millisecond)

	// Should not panic even though no connection is registered.
	b.Send("ghost", protocol.TypePong, protocol.PongPayload{UtcTimestamp: 1})
	time.Sleep(10 * time.Millisecond)
}
