// Package scheduler runs the fixed-tick background worker that advances
// GameState (the Hub only sets readiness and disconnect game-over): each
// tick it drains pending paddle inputs, advances
// every active session's Engine, classifies the resulting change, and
// broadcasts/persists accordingly. It is a single bollywood actor so its
// per-tick pass is already serialized against itself; parallelizing
// individual session Steps across a worker pool (permitted by the spec's
// concurrency model) is left for a future optimization pass since a single
// pass over a modest session count comfortably fits one 33ms tick.
package scheduler

import (
	"sync"
	"time"

	"github.com/pongarena/server/config"
	"github.com/pongarena/server/internal/bollywood"
	"github.com/pongarena/server/protocol"
	"github.com/pongarena/server/session"
	"github.com/pongarena/server/sim"
	"go.uber.org/zap"
)

// Scheduler is a bollywood Actor implementing spec component C5.
type Scheduler struct {
	cfg   config.Config
	store *session.Store
	cache inputCache
	eng   *sim.Engine
	bc    Broadcaster
	log   *zap.SugaredLogger

	selfPID *bollywood.PID
	stopCh  chan struct{}
	wg      sync.WaitGroup

	errBackoffUntil time.Time
}

// inputCache is the subset of input.Cache the scheduler depends on,
// narrowed to ease testing.
type inputCache interface {
	Take(player1ID, player2ID string) (y1, y2 *float64)
}

// Broadcaster is satisfied by *broadcaster.Broadcaster.
type Broadcaster interface {
	Send(connID, msgType string, payload interface{})
}

// New constructs the Scheduler's Producer for bollywood.NewProps.
func New(cfg config.Config, store *session.Store, cache inputCache, eng *sim.Engine, bc Broadcaster, log *zap.SugaredLogger) func() bollywood.Actor {
	return func() bollywood.Actor {
		return &Scheduler{
			cfg:    cfg,
			store:  store,
			cache:  cache,
			eng:    eng,
			bc:     bc,
			log:    log,
			stopCh: make(chan struct{}),
		}
	}
}

// Receive implements bollywood.Actor.
func (s *Scheduler) Receive(ctx bollywood.Context) {
	switch ctx.Message().(type) {
	case bollywood.Started:
		s.selfPID = ctx.Self()
		s.startPump(ctx.Engine())
	case tick:
		s.runTick()
	case drainAndStop:
		s.runTick()
		s.shutdownAllSessions()
	case bollywood.Stopping:
		close(s.stopCh)
	case bollywood.Stopped:
		s.wg.Wait()
	}
}

// startPump runs the adaptive-cadence loop described in spec §4.5: 500ms
// idle, 66ms light load, 33ms otherwise, backing off to 100ms for one
// cycle after an internal error. It only ever sends itself tick{}; all
// actual state mutation happens inside Receive, keeping it single-threaded.
func (s *Scheduler) startPump(engine *bollywood.Engine) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stopCh:
				return
			default:
			}

			interval := s.nextInterval()
			timer := time.NewTimer(interval)
			select {
			case <-s.stopCh:
				timer.Stop()
				return
			case <-timer.C:
				engine.Send(s.selfPID, tick{}, nil)
			}
		}
	}()
}

func (s *Scheduler) nextInterval() time.Duration {
	if !s.errBackoffUntil.IsZero() && time.Now().Before(s.errBackoffUntil) {
		s.errBackoffUntil = time.Time{}
		return s.cfg.ErrorBackoff
	}
	n := s.store.Count()
	switch {
	case n == 0:
		return s.cfg.IdleTick
	case n < s.cfg.LightLoadAt:
		return s.cfg.LightTick
	default:
		return s.cfg.BaseTick
	}
}

type preStepSnapshot struct {
	ballX, ballY             float64
	leftY, rightY            float64
	leftScore, rightScore    int
	gameOver                 bool
}

func snapshotOf(state *sim.GameState) preStepSnapshot {
	return preStepSnapshot{
		ballX: state.Ball.X, ballY: state.Ball.Y,
		leftY: state.LeftPaddle.Y, rightY: state.RightPaddle.Y,
		leftScore: state.LeftScore, rightScore: state.RightScore,
		gameOver: state.GameOver,
	}
}

func (s *Scheduler) runTick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("scheduler: tick panic recovered", "panic", r)
			s.errBackoffUntil = time.Now().Add(s.cfg.ErrorBackoff)
		}
	}()

	sessions := s.store.Snapshot()
	now := time.Now()
	for _, sess := range sessions {
		s.tickSession(sess, now)
	}

	for _, sess := range sessions {
		sess.Lock()
		gameOver := sess.State.GameOver
		sess.Unlock()
		if gameOver {
			s.store.Remove(sess.ID)
		}
	}
}

func (s *Scheduler) tickSession(sess *session.Session, now time.Time) {
	sess.Lock()
	defer sess.Unlock()

	if sess.State.GameOver || !sess.State.PlayersReady() {
		return
	}

	y1, y2 := s.cache.Take(sess.Player1ID, sess.Player2ID)
	if y1 != nil {
		sess.State.LeftPaddle.TargetY = *y1
	}
	if !sess.IsBot() && y2 != nil {
		sess.State.RightPaddle.TargetY = *y2
	}
	if sess.IsBot() {
		s.eng.UpdateBotTarget(&sess.State)
	}

	before := snapshotOf(&sess.State)
	s.eng.Step(&sess.State, s.cfg.DeltaTime)

	critical := sess.State.GameOver != before.gameOver ||
		sess.State.LeftScore != before.leftScore ||
		sess.State.RightScore != before.rightScore
	motion := sess.State.Ball.X != before.ballX || sess.State.Ball.Y != before.ballY ||
		sess.State.LeftPaddle.Y != before.leftY || sess.State.RightPaddle.Y != before.rightY

	switch {
	case critical:
		s.broadcastState(sess)
		sess.LastUpdateTime = now
		sess.LastClientSync = now
	case motion && now.Sub(sess.LastClientSync) >= s.cfg.ClientSync:
		s.broadcastState(sess)
		sess.LastUpdateTime = now
		sess.LastClientSync = now
	case motion:
		sess.LastUpdateTime = now
	}
}

func (s *Scheduler) broadcastState(sess *session.Session) {
	update := protocol.FromGameState(&sess.State, s.cfg.FieldW-s.cfg.PaddleW)
	s.bc.Send(sess.Player1ID, protocol.TypeGameUpdate, update)
	if !sess.IsBot() {
		s.bc.Send(sess.Player2ID, protocol.TypeGameUpdate, update)
	}
}

// shutdownAllSessions implements the spec's drain-then-terminate shutdown:
// after one final tick, every active session is flipped to a neutral
// game-over state and sent one terminal GameUpdate.
func (s *Scheduler) shutdownAllSessions() {
	for _, sess := range s.store.Snapshot() {
		sess.Lock()
		if !sess.State.GameOver {
			sess.State.GameOver = true
			sess.State.Winner = 0
		}
		sess.Unlock()
		s.broadcastState(sess)
		s.store.Remove(sess.ID)
	}
}

// RequestShutdown asks the scheduler actor to drain one more tick and
// terminate all sessions before the engine proceeds to stop it.
func RequestShutdown(engine *bollywood.Engine, pid *bollywood.PID) {
	engine.Send(pid, drainAndStop{}, nil)
}
