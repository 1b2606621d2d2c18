// Package protocol defines the wire messages exchanged between a client
// connection and the Hub, as a closed set of tagged variants in place of
// dynamic dispatch on message name.
package protocol

import (
	"encoding/json"

	"github.com/pongarena/server/sim"
)

// Envelope is the outer frame carried over the transport. Type names one of
// the inbound or outbound message structs below; Payload holds its encoded
// body.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message type names.
const (
	TypeJoinMatchmaking = "JoinMatchmaking"
	TypeStartBotMatch   = "StartBotMatch"
	TypeSendPaddleInput = "SendPaddleInput"
	TypeRequestStart    = "RequestStartGame"
	TypeKeepAlive       = "KeepAlive"
)

// Outbound message type names.
const (
	TypeMatchFound           = "MatchFound"
	TypeWaitingForOpponent   = "WaitingForOpponent"
	TypeAlreadyInGame        = "AlreadyInGame"
	TypeGameStarted          = "GameStarted"
	TypeGameUpdate           = "GameUpdate"
	TypeOpponentPaddleInput  = "OpponentPaddleInput"
	TypeOpponentDisconnected = "OpponentDisconnected"
	TypePong                 = "Pong"
)

// SendPaddleInput is the single float-valued inbound paddle command.
type SendPaddleInput struct {
	TargetY float64 `json:"targetY"`
}

// MatchFound announces a paired opponent and the receiver's side.
type MatchFound struct {
	Opponent string `json:"opponent"`
	Side     int    `json:"side"`
	IsBot    bool   `json:"isBot,omitempty"`
}

// OpponentPaddleInput is the fire-and-forget visual hint forwarded straight
// from one player's input to their opponent.
type OpponentPaddleInput struct {
	TargetY float64 `json:"targetY"`
}

// PongPayload answers KeepAlive with the server's current UTC time.
type PongPayload struct {
	UtcTimestamp int64 `json:"utcTimestamp"`
}

// BallView is the client-facing shape of the ball.
type BallView struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VelocityX  float64 `json:"velocityX"`
	VelocityY  float64 `json:"velocityY"`
}

// PaddleView is the client-facing shape of a paddle.
type PaddleView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GameUpdate is the full authoritative state broadcast each relevant tick.
type GameUpdate struct {
	Ball                BallView   `json:"ball"`
	LeftPaddle          PaddleView `json:"leftPaddle"`
	RightPaddle         PaddleView `json:"rightPaddle"`
	LeftScore           int        `json:"leftScore"`
	RightScore          int        `json:"rightScore"`
	GameOver            bool       `json:"gameOver"`
	Winner              int        `json:"winner"`
	SequenceNumber      uint64     `json:"sequenceNumber"`
	LeftPaddleTargetY   float64    `json:"leftPaddleTargetY"`
	RightPaddleTargetY  float64    `json:"rightPaddleTargetY"`
	LeftPlayerReady     bool       `json:"leftPlayerReady"`
	RightPlayerReady    bool       `json:"rightPlayerReady"`
}

// FromGameState projects a sim.GameState onto the wire shape, given the
// right paddle's fixed X position (the field width minus the paddle
// width — the Engine itself never stores per-axis paddle X).
func FromGameState(state *sim.GameState, rightPaddleX float64) GameUpdate {
	return GameUpdate{
		Ball: BallView{
			X: state.Ball.X, Y: state.Ball.Y,
			VelocityX: state.Ball.VX, VelocityY: state.Ball.VY,
		},
		LeftPaddle:         PaddleView{X: 0, Y: state.LeftPaddle.Y},
		RightPaddle:        PaddleView{X: rightPaddleX, Y: state.RightPaddle.Y},
		LeftScore:          state.LeftScore,
		RightScore:         state.RightScore,
		GameOver:           state.GameOver,
		Winner:             state.Winner,
		SequenceNumber:     state.SequenceNumber,
		LeftPaddleTargetY:  state.LeftPaddle.TargetY,
		RightPaddleTargetY: state.RightPaddle.TargetY,
		LeftPlayerReady:    state.LeftReady,
		RightPlayerReady:   state.RightReady,
	}
}

// Encode wraps a typed payload into an Envelope ready for transport.
func Encode(msgType string, payload interface{}) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

// Decode unmarshals an Envelope's payload into dst.
func Decode(env Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, dst)
}
