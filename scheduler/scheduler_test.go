package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/pongarena/server/config"
	"github.com/pongarena/server/protocol"
	"github.com/pongarena/server/session"
	"github.com/pongarena/server/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	y1, y2 *float64
}

func (f *fakeCache) Take(_, _ string) (*float64, *float64) { return f.y1, f.y2 }

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []protocol.GameUpdate
}

func (r *recordingBroadcaster) Send(_ string, _ string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gu, ok := payload.(protocol.GameUpdate); ok {
		r.sent = append(r.sent, gu)
	}
}

func newTestScheduler(store *session.Store, bc Broadcaster) *Scheduler {
	cfg := config.FastTestConfig()
	return &Scheduler{
		cfg:    cfg,
		store:  store,
		cache:  &fakeCache{},
		eng:    sim.New(cfg, 7),
		bc:     bc,
		log:    zap.NewNop().Sugar(),
		stopCh: make(chan struct{}),
	}
}

func TestScheduler_TickSessionBroadcastsOnScore(t *testing.T) {
	store := session.NewStore()
	cfg := config.FastTestConfig()
	sess := &session.Session{
		ID: "a:b", Player1ID: "a", Player2ID: "b",
		State: sim.GameState{
			LeftReady: true, RightReady: true,
			LeftPaddle:  sim.Paddle{Y: 250, TargetY: 250},
			RightPaddle: sim.Paddle{Y: 250, TargetY: 250},
			Ball:        sim.Ball{X: cfg.FieldW + 1, Y: 300, VX: 6, VY: 0},
		},
	}
	require.NoError(t, store.Create(sess))

	bc := &recordingBroadcaster{}
	s := newTestScheduler(store, bc)
	s.tickSession(sess, time.Now())

	// One GameUpdate to each of the two real players.
	bc.mu.Lock()
	defer bc.mu.Unlock()
	require.Len(t, bc.sent, 2)
	assert.Equal(t, 1, bc.sent[0].LeftScore)
}

func TestScheduler_RemovesGameOverSessionsAfterTick(t *testing.T) {
	store := session.NewStore()
	cfg := config.FastTestConfig()
	sess := &session.Session{
		ID: "a:b", Player1ID: "a", Player2ID: "b",
		State: sim.GameState{
			LeftReady: true, RightReady: true,
			LeftScore:   cfg.WinScore - 1,
			LeftPaddle:  sim.Paddle{Y: 250, TargetY: 250},
			RightPaddle: sim.Paddle{Y: 250, TargetY: 250},
			Ball:        sim.Ball{X: cfg.FieldW + 1, Y: 300, VX: 6, VY: 0},
		},
	}
	require.NoError(t, store.Create(sess))

	bc := &recordingBroadcaster{}
	s := newTestScheduler(store, bc)
	s.runTick()

	_, ok := store.GetByID(sess.ID)
	assert.False(t, ok)
}

func TestScheduler_ShutdownAllSessionsSendsTerminalUpdate(t *testing.T) {
	store := session.NewStore()
	sess := &session.Session{
		ID: "a:b", Player1ID: "a", Player2ID: "b",
		State: sim.GameState{LeftReady: true, RightReady: true},
	}
	require.NoError(t, store.Create(sess))

	bc := &recordingBroadcaster{}
	s := newTestScheduler(store, bc)
	s.shutdownAllSessions()

	// One terminal GameUpdate to each of the two real players.
	bc.mu.Lock()
	defer bc.mu.Unlock()
	require.Len(t, bc.sent, 2)
	assert.True(t, bc.sent[0].GameOver)
	assert.Equal(t, 0, bc.sent[0].Winner)

	_, ok := store.GetByID(sess.ID)
	assert.False(t, ok)
}
