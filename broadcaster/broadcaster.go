// Package broadcaster is the thin, stateless-per-call adapter that turns a
// GameUpdate (or any outbound message) into a best-effort send to a
// specific connection, with a bounded retry budget. It holds no session
// state; the transport owns connection handles.
package broadcaster

import (
	"sync"
	"time"

	"github.com/pongarena/server/protocol"
	"go.uber.org/zap"
)

// Conn is the minimal transport capability the Broadcaster needs: a way to
// push one encoded envelope to one connection. The websocket server
// implements this.
type Conn interface {
	Send(env protocol.Envelope) error
}

// Registry maps a stable connection id to its live Conn. It is shared
// between the server's connection actors (which register/unregister on
// connect/disconnect) and the Broadcaster (which looks up by id).
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register associates connID with conn, replacing any prior entry.
func (r *Registry) Register(connID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = conn
}

// Unregister removes connID, if present.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// Get looks up the live Conn for connID.
func (r *Registry) Get(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Broadcaster fans out named messages to specific connections.
type Broadcaster struct {
	registry    *Registry
	log         *zap.SugaredLogger
	maxAttempts int
	backoffs    []time.Duration
}

// New creates a Broadcaster with the spec's bounded-retry policy
// (<=3 attempts, 100ms then 200ms backoff).
func New(registry *Registry, log *zap.SugaredLogger, maxAttempts int, backoff time.Duration) *Broadcaster {
	return &Broadcaster{
		registry:    registry,
		log:         log,
		maxAttempts: maxAttempts,
		backoffs:    []time.Duration{0, backoff, backoff * 2},
	}
}

// Send is fire-and-forget and non-blocking: it returns immediately and
// retries in the background. The Scheduler's next broadcast supersedes a
// message dropped after exhausting the retry budget.
func (b *Broadcaster) Send(connID, msgType string, payload interface{}) {
	env, err := protocol.Encode(msgType, payload)
	if err != nil {
		b.log.Errorw("broadcaster: encode failed", "connID", connID, "type", msgType, "err", err)
		return
	}
	go b.deliver(connID, msgType, env)
}

func (b *Broadcaster) deliver(connID, msgType string, env protocol.Envelope) {
	attempts := b.maxAttempts
	if attempts > len(b.backoffs) {
		attempts = len(b.backoffs)
	}
	for i := 0; i < attempts; i++ {
		if b.backoffs[i] > 0 {
			time.Sleep(b.backoffs[i])
		}
		conn, ok := b.registry.Get(connID)
		if !ok {
			b.log.Debugw("broadcaster: connection gone, dropping", "connID", connID, "type", msgType)
			return
		}
		if err := conn.Send(env); err == nil {
			return
		} else if i == attempts-1 {
			b.log.Warnw("broadcaster: persistent send failure, dropping", "connID", connID, "type", msgType, "err", err)
		}
	}
}
