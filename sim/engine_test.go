package sim

import (
	"math"
	"testing"

	"github.com/pongarena/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyState() *GameState {
	return &GameState{
		LeftPaddle:  Paddle{Y: 250, TargetY: 250},
		RightPaddle: Paddle{Y: 250, TargetY: 250},
		LeftReady:   true,
		RightReady:  true,
	}
}

func TestStep_SingleTickWallBounce(t *testing.T) {
	cfg := config.Default()
	e := New(cfg, 1)
	s := readyState()
	s.Ball = Ball{X: 400, Y: 584, VX: 0, VY: 6}

	e.Step(s, 1.0/60)

	assert.GreaterOrEqual(t, s.Ball.Y, 0.0)
	assert.Equal(t, -6.0, s.Ball.VY)
	assert.Equal(t, uint64(1), s.SequenceNumber)
}

func TestStep_LeftPaddleCenteredHit(t *testing.T) {
	cfg := config.Default()
	e := New(cfg, 1)
	s := readyState()
	s.Ball = Ball{X: 17, Y: 292, VX: -6, VY: 0}

	e.Step(s, 1.0/60)

	assert.InDelta(t, 6.0, s.Ball.VX, 0.01)
	assert.Less(t, math.Abs(s.Ball.VY), 0.01)
	assert.InDelta(t, 16.1, s.Ball.X, 0.01)
	assert.Equal(t, 0, s.LeftScore)
}

func TestStep_NoOpWhenNotReady(t *testing.T) {
	cfg := config.Default()
	e := New(cfg, 1)
	s := readyState()
	s.RightReady = false
	s.Ball = Ball{X: 400, Y: 300, VX: 6, VY: 0}

	e.Step(s, 1.0/60)

	assert.Equal(t, 400.0, s.Ball.X)
	assert.Equal(t, uint64(0), s.SequenceNumber)
}

func TestStep_ZeroDeltaIsIdentityOnSteadyState(t *testing.T) {
	cfg := config.Default()
	e := New(cfg, 1)
	s := readyState()
	s.Ball = Ball{X: 400, Y: 300, VX: 0, VY: 0}
	before := *s

	e.Step(s, 0)

	assert.Equal(t, before.Ball, s.Ball)
	assert.Equal(t, before.LeftPaddle, s.LeftPaddle)
	assert.Equal(t, before.RightPaddle, s.RightPaddle)
}

func TestStep_ScoringEndsGameAtWinScore(t *testing.T) {
	cfg := config.Default()
	e := New(cfg, 1)
	s := readyState()
	s.LeftScore = cfg.WinScore - 1
	s.Ball = Ball{X: cfg.FieldW + 1, Y: 300, VX: 6, VY: 0}

	e.Step(s, 1.0/60)

	require.True(t, s.GameOver)
	assert.Equal(t, 1, s.Winner)

	seqBefore := s.SequenceNumber
	ballBefore := s.Ball
	e.Step(s, 1.0/60)
	assert.Equal(t, seqBefore, s.SequenceNumber)
	assert.Equal(t, ballBefore, s.Ball)
}

func TestUpdateBotTarget_TracksBall(t *testing.T) {
	cfg := config.Default()
	e := New(cfg, 1)
	s := readyState()
	s.Ball = Ball{X: 400, Y: 300, VX: 6, VY: 0}

	for i := 0; i < 200; i++ {
		e.UpdateBotTarget(s)
		e.Step(s, cfg.DeltaTime)
	}

	// After 200 ticks the ball is heading left, so the bot aims its paddle
	// centre at the ball's current centre.
	require.Less(t, s.Ball.VX, 0.0)
	expectedCenter := s.Ball.Y - cfg.PaddleH/2 + cfg.BallSize/2
	assert.InDelta(t, expectedCenter, s.RightPaddle.Y, cfg.PaddleSpeed*cfg.BotSpeedFactor+1)
}

func TestResetBall_Deterministic(t *testing.T) {
	e1 := New(config.Default(), 42)
	e2 := New(config.Default(), 42)
	s1 := &GameState{}
	s2 := &GameState{}

	e1.ResetBall(s1, 1)
	e2.ResetBall(s2, 1)

	assert.Equal(t, s1.Ball, s2.Ball)
}
