package sim

import (
	"math"
	"math/rand"

	"github.com/pongarena/server/config"
)

// Engine advances GameState instances according to the configured field
// geometry and speeds. Step is deterministic given (state, Δt) except for
// ResetBall, which draws from the Engine's own injected RNG so tests can
// pin the sequence with a fixed seed — mirroring the teacher's use of a
// single seedable generator rather than the global math/rand functions.
type Engine struct {
	cfg config.Config
	rng *rand.Rand
}

// New creates an Engine seeded deterministically for reproducible tests and
// gameplay alike.
func New(cfg config.Config, seed int64) *Engine {
	return &Engine{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func moveToward(a, b, delta float64) float64 {
	if math.Abs(b-a) <= delta {
		return b
	}
	if b > a {
		return a + delta
	}
	return a - delta
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type aabb struct{ xmin, xmax, ymin, ymax float64 }

func (e *Engine) leftPaddleX() float64  { return 0 }
func (e *Engine) rightPaddleX() float64 { return e.cfg.FieldW - e.cfg.PaddleW }

func (e *Engine) expandedPaddleRect(paddleX, paddleY float64) aabb {
	c := e.cfg
	return aabb{
		xmin: paddleX - c.Collision/2,
		xmax: paddleX + c.PaddleW + c.Collision/2,
		ymin: paddleY - c.Collision,
		ymax: paddleY + c.PaddleH + c.Collision,
	}
}

// sweptHit reports a hit if the ball's AABB overlaps rect this frame, or if
// the ball's leading edge crossed rect's near face between px and x.
func sweptHit(px, _ /*py*/, x, y, vx, size float64, rect aabb) bool {
	ballX0, ballX1 := x, x+size
	ballY0, ballY1 := y, y+size
	overlapNow := ballX0 < rect.xmax && ballX1 > rect.xmin && ballY0 < rect.ymax && ballY1 > rect.ymin
	if overlapNow {
		return true
	}
	yOverlap := ballY0 < rect.ymax && ballY1 > rect.ymin
	if !yOverlap {
		return false
	}
	switch {
	case vx < 0:
		return px+size > rect.xmax && x <= rect.xmax
	case vx > 0:
		return px < rect.xmin && x+size >= rect.xmin
	default:
		return false
	}
}

// hitResponse applies the spec's bounce-angle formula. side is -1 for the
// left paddle, +1 for the right.
func (e *Engine) hitResponse(b *Ball, paddleX, paddleY float64, side float64) {
	c := e.cfg
	speed := math.Hypot(b.VX, b.VY)
	r := (paddleY + c.PaddleH/2) - (b.Y + c.BallSize/2)
	n := clamp(r/(c.PaddleH/2), -1, 1)
	theta := n * 0.8

	vxMag := math.Abs(speed * math.Cos(theta))
	b.VY = -speed * math.Sin(theta)
	if side < 0 {
		b.VX = vxMag
		b.X = paddleX + c.PaddleW + 0.1
	} else {
		b.VX = -vxMag
		b.X = paddleX - c.BallSize - 0.1
	}
}

// Step advances state by Δt seconds. No-op when the round isn't active.
func (e *Engine) Step(state *GameState, dt float64) {
	if state.GameOver || !state.PlayersReady() {
		return
	}
	c := e.cfg

	// 1. Paddle convergence.
	step := c.PaddleSpeed * dt * 60
	state.LeftPaddle.Y = clamp(moveToward(state.LeftPaddle.Y, state.LeftPaddle.TargetY, step), 0, c.FieldH-c.PaddleH)
	state.RightPaddle.Y = clamp(moveToward(state.RightPaddle.Y, state.RightPaddle.TargetY, step), 0, c.FieldH-c.PaddleH)

	// 2. Previous ball position.
	px, py := state.Ball.X, state.Ball.Y

	// 3. Ball integration.
	state.Ball.X += state.Ball.VX * dt * 60
	state.Ball.Y += state.Ball.VY * dt * 60

	// 4. Wall reflection.
	if state.Ball.Y <= 0 {
		state.Ball.VY = -state.Ball.VY
		state.Ball.Y = 0
	} else if state.Ball.Y >= c.FieldH-c.BallSize {
		state.Ball.VY = -state.Ball.VY
		state.Ball.Y = c.FieldH - c.BallSize
	}

	// 5-6. Continuous paddle collision + hit response. Only the side the
	// ball is moving toward can register, which resolves the tie-break.
	leftRect := e.expandedPaddleRect(e.leftPaddleX(), state.LeftPaddle.Y)
	if state.Ball.VX < 0 && sweptHit(px, py, state.Ball.X, state.Ball.Y, state.Ball.VX, c.BallSize, leftRect) {
		e.hitResponse(&state.Ball, e.leftPaddleX(), state.LeftPaddle.Y, -1)
	} else {
		rightRect := e.expandedPaddleRect(e.rightPaddleX(), state.RightPaddle.Y)
		if state.Ball.VX > 0 && sweptHit(px, py, state.Ball.X, state.Ball.Y, state.Ball.VX, c.BallSize, rightRect) {
			e.hitResponse(&state.Ball, e.rightPaddleX(), state.RightPaddle.Y, 1)
		}
	}

	// 7. Scoring.
	if state.Ball.X < 0 {
		state.RightScore++
		e.ResetBall(state, -1)
	} else if state.Ball.X > c.FieldW {
		state.LeftScore++
		e.ResetBall(state, 1)
	}
	if state.LeftScore >= c.WinScore || state.RightScore >= c.WinScore {
		state.GameOver = true
		if state.LeftScore >= c.WinScore {
			state.Winner = 1
		} else {
			state.Winner = 2
		}
	}

	// 8. Sequence.
	state.SequenceNumber++
}

// ResetBall re-centers the ball and fires it toward dir (-1 left, +1 right)
// at a random angle within ±π/8.
func (e *Engine) ResetBall(state *GameState, dir int) {
	c := e.cfg
	state.Ball.X = c.FieldW/2 - c.BallSize/2
	state.Ball.Y = c.FieldH/2 - c.BallSize/2

	angle := (e.rng.Float64()*2 - 1) * (math.Pi / 8)
	state.Ball.VX = c.BallSpeed * float64(dir) * math.Cos(angle)
	state.Ball.VY = c.BallSpeed * math.Sin(angle)
}

// UpdateBotTarget predicts where the ball will cross the right paddle's
// plane and nudges the bot's target toward it at a bounded speed, leaving
// the actual Y convergence to the next Step call.
func (e *Engine) UpdateBotTarget(state *GameState) {
	c := e.cfg
	var yPred float64
	if state.Ball.VX > 0 {
		t := (e.rightPaddleX() - state.Ball.X) / state.Ball.VX
		yPred = clamp(state.Ball.Y+state.Ball.VY*t, 0, c.FieldH-c.BallSize)
	} else {
		yPred = state.Ball.Y
	}

	aim := clamp(yPred-c.PaddleH/2+c.BallSize/2, 0, c.FieldH-c.PaddleH)
	state.RightPaddle.TargetY = moveToward(state.RightPaddle.Y, aim, c.PaddleSpeed*c.BotSpeedFactor)
}
