package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pongarena/server/broadcaster"
	"github.com/pongarena/server/config"
	"github.com/pongarena/server/input"
	"github.com/pongarena/server/matchqueue"
	"github.com/pongarena/server/protocol"
	"github.com/pongarena/server/session"
)

type recordingConn struct {
	mu       sync.Mutex
	received []protocol.Envelope
}

func (c *recordingConn) Send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, env)
	return nil
}

func (c *recordingConn) last() (protocol.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.received) == 0 {
		return protocol.Envelope{}, false
	}
	return c.received[len(c.received)-1], true
}

func newTestDeps(t *testing.T) (Deps, map[string]*recordingConn) {
	t.Helper()
	cfg := config.FastTestConfig()
	registry := broadcaster.NewRegistry()
	conns := map[string]*recordingConn{
		"a": {}, "b": {},
	}
	for id, c := range conns {
		registry.Register(id, c)
	}
	deps := Deps{
		Cfg:      cfg,
		Store:    session.NewStore(),
		Queue:    matchqueue.NewMemory(),
		Cache:    input.New(cfg.InputTTL, cfg.InputQPS, 0, cfg.FieldH-cfg.PaddleH),
		Bc:       broadcaster.New(registry, zap.NewNop().Sugar(), 1, time.Millisecond),
		Registry: registry,
		Log:      zap.NewNop().Sugar(),
	}
	return deps, conns
}

func newTestHub(playerID string, deps Deps) *Hub {
	return &Hub{playerID: playerID, deps: deps, stopCh: make(chan struct{})}
}

func TestHub_JoinMatchmakingPairsTwoPlayers(t *testing.T) {
	deps, conns := newTestDeps(t)
	hubA := newTestHub("a", deps)
	hubB := newTestHub("b", deps)

	hubA.handleJoinMatchmaking()
	hubB.handleJoinMatchmaking()

	assert.Eventually(t, func() bool {
		env, ok := conns["a"].last()
		return ok && env.Type == protocol.TypeMatchFound
	}, time.Second, time.Millisecond)

	env, _ := conns["a"].last()
	var mf protocol.MatchFound
	require.NoError(t, json.Unmarshal(env.Payload, &mf))
	assert.Equal(t, "b", mf.Opponent)
	assert.Equal(t, 1, mf.Side)

	_, ok := deps.Store.GetByPlayer("a")
	assert.True(t, ok)
}

func TestHub_JoinMatchmakingAlreadyInGame(t *testing.T) {
	deps, conns := newTestDeps(t)
	sess := &session.Session{ID: session.DeriveID("a", "b"), Player1ID: "a", Player2ID: "b"}
	require.NoError(t, deps.Store.Create(sess))

	hubA := newTestHub("a", deps)
	hubA.handleJoinMatchmaking()

	assert.Eventually(t, func() bool {
		env, ok := conns["a"].last()
		return ok && env.Type == protocol.TypeAlreadyInGame
	}, time.Second, time.Millisecond)
}

func TestHub_StartBotMatch(t *testing.T) {
	deps, conns := newTestDeps(t)
	hubA := newTestHub("a", deps)

	hubA.handleStartBotMatch()

	assert.Eventually(t, func() bool {
		env, ok := conns["a"].last()
		return ok && env.Type == protocol.TypeMatchFound
	}, time.Second, time.Millisecond)

	sess, ok := deps.Store.GetByPlayer("a")
	require.True(t, ok)
	assert.True(t, sess.IsBot())
	assert.True(t, sess.State.PlayersReady())
}

func TestHub_RequestStartGameIdempotent(t *testing.T) {
	deps, conns := newTestDeps(t)
	sess := &session.Session{ID: session.DeriveID("a", "b"), Player1ID: "a", Player2ID: "b"}
	require.NoError(t, deps.Store.Create(sess))

	hubA := newTestHub("a", deps)
	hubA.handleRequestStartGame()
	assert.False(t, sess.State.PlayersReady())

	hubB := newTestHub("b", deps)
	hubB.handleRequestStartGame()
	assert.True(t, sess.State.PlayersReady())

	assert.Eventually(t, func() bool {
		env, ok := conns["a"].last()
		return ok && env.Type == protocol.TypeGameStarted
	}, time.Second, time.Millisecond)

	// A second RequestStartGame from a should not re-emit GameStarted.
	hubA.handleRequestStartGame()
	time.Sleep(10 * time.Millisecond)
	n := len(conns["a"].received)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, len(conns["a"].received))
}

func TestHub_DisconnectIsIdempotent(t *testing.T) {
	deps, conns := newTestDeps(t)
	sess := &session.Session{
		ID: session.DeriveID("a", "b"), Player1ID: "a", Player2ID: "b",
	}
	sess.State.LeftScore = 3
	sess.State.RightScore = 1
	sess.State.LeftReady = true
	sess.State.RightReady = true
	require.NoError(t, deps.Store.Create(sess))

	hubA := newTestHub("a", deps)
	hubA.handleDisconnect()
	hubA.handleDisconnect()

	assert.Eventually(t, func() bool {
		env, ok := conns["b"].last()
		return ok && env.Type == protocol.TypeOpponentDisconnected
	}, time.Second, time.Millisecond)

	env, _ := conns["b"].last()
	var gu protocol.GameUpdate
	require.NoError(t, json.Unmarshal(env.Payload, &gu))
	assert.True(t, gu.GameOver)
	assert.Equal(t, 2, gu.Winner)
	assert.Equal(t, 3, gu.LeftScore)
	assert.Equal(t, 1, gu.RightScore)

	_, ok := deps.Store.GetByID(sess.ID)
	assert.False(t, ok)
}
