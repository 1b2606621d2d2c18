// Package server wires the HTTP/websocket transport to the rest of the
// system: one Hub actor per connection (spec component C6), the Health
// endpoint (C7), and the composition of both with the Broadcaster registry.
package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/pongarena/server/broadcaster"
	"github.com/pongarena/server/config"
	"github.com/pongarena/server/input"
	"github.com/pongarena/server/internal/bollywood"
	"github.com/pongarena/server/matchqueue"
	"github.com/pongarena/server/protocol"
	"github.com/pongarena/server/session"
	"github.com/pongarena/server/sim"
	"go.uber.org/zap"
)

type inboundEnvelope struct{ env protocol.Envelope }
type connClosed struct{}

// Deps bundles the collaborators a Hub actor needs, all created once at the
// composition root and shared by every connection.
type Deps struct {
	Cfg       config.Config
	Store     *session.Store
	Queue     matchqueue.Queue
	Cache     *input.Cache
	Bc        *broadcaster.Broadcaster
	Registry  *broadcaster.Registry
	Log       *zap.SugaredLogger
}

// Hub is the per-connection actor implementing spec component C6. Its
// message handlers never hold a session lock across a network send.
type Hub struct {
	playerID string
	conn     *wsConn
	deps     Deps
	done     chan struct{}

	selfPID *bollywood.PID
	stopCh  chan struct{}
}

// NewHubProducer returns a bollywood.Producer spawning one Hub for this
// connection, plus a channel the caller can block on: it closes once the
// Hub has fully stopped, mirroring the teacher's handlerDone pattern so the
// websocket.Handler function does not return (and tear down the conn)
// before actor cleanup completes.
func NewHubProducer(playerID string, ws *websocket.Conn, deps Deps) (bollywood.Producer, <-chan struct{}) {
	done := make(chan struct{})
	producer := func() bollywood.Actor {
		return &Hub{
			playerID: playerID,
			conn:     &wsConn{ws: ws},
			deps:     deps,
			done:     done,
			stopCh:   make(chan struct{}),
		}
	}
	return producer, done
}

// Receive implements bollywood.Actor.
func (h *Hub) Receive(ctx bollywood.Context) {
	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		h.selfPID = ctx.Self()
		h.deps.Registry.Register(h.playerID, h.conn)
		go h.readLoop(ctx.Engine())
	case inboundEnvelope:
		h.dispatch(msg.env)
	case connClosed:
		h.handleDisconnect()
		ctx.Engine().Stop(h.selfPID)
	case bollywood.Stopping:
		close(h.stopCh)
		_ = h.conn.Close()
	case bollywood.Stopped:
		h.deps.Registry.Unregister(h.playerID)
		close(h.done)
	}
}

// readLoop blocks on the websocket until it errors or stopCh closes,
// forwarding every decoded envelope into the actor's own mailbox so all
// state mutation happens on the actor's single goroutine.
func (h *Hub) readLoop(engine *bollywood.Engine) {
	for {
		var env protocol.Envelope
		if err := websocket.JSON.Receive(h.conn.ws, &env); err != nil {
			select {
			case <-h.stopCh:
			default:
				engine.Send(h.selfPID, connClosed{}, nil)
			}
			return
		}
		select {
		case <-h.stopCh:
			return
		default:
			engine.Send(h.selfPID, inboundEnvelope{env: env}, nil)
		}
	}
}

func (h *Hub) dispatch(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoinMatchmaking:
		h.handleJoinMatchmaking()
	case protocol.TypeStartBotMatch:
		h.handleStartBotMatch()
	case protocol.TypeSendPaddleInput:
		var p protocol.SendPaddleInput
		if err := protocol.Decode(env, &p); err != nil {
			h.deps.Log.Debugw("hub: dropping malformed SendPaddleInput", "playerID", h.playerID, "err", err)
			return
		}
		h.handleSendPaddleInput(p.TargetY)
	case protocol.TypeRequestStart:
		h.handleRequestStartGame()
	case protocol.TypeKeepAlive:
		h.handleKeepAlive()
	default:
		h.deps.Log.Debugw("hub: unknown message type", "playerID", h.playerID, "type", env.Type)
	}
}

func initialGameState(cfg config.Config) sim.GameState {
	return sim.GameState{
		LeftPaddle:  sim.Paddle{Y: (cfg.FieldH - cfg.PaddleH) / 2, TargetY: (cfg.FieldH - cfg.PaddleH) / 2},
		RightPaddle: sim.Paddle{Y: (cfg.FieldH - cfg.PaddleH) / 2, TargetY: (cfg.FieldH - cfg.PaddleH) / 2},
		Ball: sim.Ball{
			X: cfg.FieldW/2 - cfg.BallSize/2, Y: cfg.FieldH/2 - cfg.BallSize/2,
			VX: cfg.BallSpeed, VY: 0,
		},
	}
}

func otherPlayer(sess *session.Session, playerID string) string {
	if sess.Player1ID == playerID {
		return sess.Player2ID
	}
	return sess.Player1ID
}

func (h *Hub) handleJoinMatchmaking() {
	if _, ok := h.deps.Store.GetByPlayer(h.playerID); ok {
		h.deps.Bc.Send(h.playerID, protocol.TypeAlreadyInGame, nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.deps.Queue.Enqueue(ctx, h.playerID); err != nil {
		h.deps.Log.Warnw("hub: matchqueue enqueue failed", "playerID", h.playerID, "err", err)
		return
	}

	a, b, ok, err := h.deps.Queue.PairPop(ctx)
	if err != nil {
		h.deps.Log.Warnw("hub: matchqueue pairpop failed", "playerID", h.playerID, "err", err)
		return
	}
	if !ok {
		h.deps.Bc.Send(h.playerID, protocol.TypeWaitingForOpponent, nil)
		return
	}

	sess := &session.Session{
		ID:        session.DeriveID(a, b),
		Player1ID: a,
		Player2ID: b,
		State:     initialGameState(h.deps.Cfg),
	}
	if err := h.deps.Store.Create(sess); err != nil {
		h.deps.Log.Warnw("hub: session already exists for paired players", "a", a, "b", b, "err", err)
		return
	}

	h.deps.Bc.Send(a, protocol.TypeMatchFound, protocol.MatchFound{Opponent: b, Side: 1})
	h.deps.Bc.Send(b, protocol.TypeMatchFound, protocol.MatchFound{Opponent: a, Side: 2})
}

func (h *Hub) handleStartBotMatch() {
	if _, ok := h.deps.Store.GetByPlayer(h.playerID); ok {
		h.deps.Bc.Send(h.playerID, protocol.TypeAlreadyInGame, nil)
		return
	}

	botID := "bot_" + uuid.NewString()
	state := initialGameState(h.deps.Cfg)
	state.LeftReady = true
	state.RightReady = true

	sess := &session.Session{
		ID:              session.DeriveID(h.playerID, botID),
		Player1ID:       h.playerID,
		Player2ID:       botID,
		State:           state,
		GameStartedSent: true,
	}
	if err := h.deps.Store.Create(sess); err != nil {
		h.deps.Log.Warnw("hub: bot session creation failed", "playerID", h.playerID, "err", err)
		return
	}

	h.deps.Bc.Send(h.playerID, protocol.TypeMatchFound, protocol.MatchFound{Opponent: "Bot", Side: 1, IsBot: true})
}

func (h *Hub) handleSendPaddleInput(targetY float64) {
	h.deps.Cache.Put(h.playerID, targetY)

	sess, ok := h.deps.Store.GetByPlayer(h.playerID)
	if !ok || sess.IsBot() {
		return
	}
	opponent := otherPlayer(sess, h.playerID)
	h.deps.Bc.Send(opponent, protocol.TypeOpponentPaddleInput, protocol.OpponentPaddleInput{TargetY: targetY})
}

func (h *Hub) handleRequestStartGame() {
	sess, ok := h.deps.Store.GetByPlayer(h.playerID)
	if !ok || sess.IsBot() {
		return
	}

	sess.Lock()
	if h.playerID == sess.Player1ID {
		sess.State.LeftReady = true
	} else if h.playerID == sess.Player2ID {
		sess.State.RightReady = true
	}
	ready := sess.State.PlayersReady()
	alreadySent := sess.GameStartedSent
	if ready && !alreadySent {
		sess.GameStartedSent = true
	}
	sess.Unlock()

	if ready && !alreadySent {
		h.deps.Bc.Send(sess.Player1ID, protocol.TypeGameStarted, nil)
		h.deps.Bc.Send(sess.Player2ID, protocol.TypeGameStarted, nil)
	}
}

func (h *Hub) handleKeepAlive() {
	h.deps.Bc.Send(h.playerID, protocol.TypePong, protocol.PongPayload{UtcTimestamp: time.Now().UTC().Unix()})
}

// handleDisconnect implements the spec's OnDisconnect handler. It is
// idempotent: a session already marked gameOver is left untouched and no
// second OpponentDisconnected is sent.
func (h *Hub) handleDisconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.deps.Queue.Remove(ctx, h.playerID); err != nil {
		h.deps.Log.Warnw("hub: matchqueue remove on disconnect failed", "playerID", h.playerID, "err", err)
	}
	h.deps.Cache.Remove(h.playerID)

	sess, ok := h.deps.Store.GetByPlayer(h.playerID)
	if !ok {
		return
	}

	sess.Lock()
	if sess.State.GameOver {
		sess.Unlock()
		return
	}
	sess.State.GameOver = true
	if h.playerID == sess.Player1ID {
		sess.State.Winner = 2
	} else {
		sess.State.Winner = 1
	}
	final := sess.State
	sess.Unlock()
	h.deps.Store.Update(sess)

	survivor := otherPlayer(sess, h.playerID)
	if !sess.IsBot() && survivor != "" {
		update := protocol.FromGameState(&final, h.deps.Cfg.FieldW-h.deps.Cfg.PaddleW)
		h.deps.Bc.Send(survivor, protocol.TypeOpponentDisconnected, update)
	}
	h.deps.Store.Remove(sess.ID)
}
