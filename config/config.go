// Package config holds the process-wide tunables for the Pong server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configurable server parameters.
type Config struct {
	// Field geometry
	FieldW    float64 `json:"fieldW"`
	FieldH    float64 `json:"fieldH"`
	PaddleH   float64 `json:"paddleH"`
	PaddleW   float64 `json:"paddleW"`
	BallSize  float64 `json:"ballSize"`
	Collision float64 `json:"collisionBuffer"`

	// Physics
	PaddleSpeed   float64 `json:"paddleSpeed"`
	BotSpeedFactor float64 `json:"botSpeedFactor"`
	BallSpeed     float64 `json:"ballSpeed"`
	WinScore      int     `json:"winScore"`

	// Scheduler cadence
	BaseTick    time.Duration `json:"baseTick"`
	ClientSync  time.Duration `json:"clientSync"`
	DeltaTime   float64       `json:"deltaTime"`
	IdleTick    time.Duration `json:"idleTick"`
	LightTick   time.Duration `json:"lightTick"`
	ErrorBackoff time.Duration `json:"errorBackoff"`
	LightLoadAt int           `json:"lightLoadAt"`

	// Input
	InputTTL time.Duration `json:"inputTTL"`
	InputQPS float64       `json:"inputQPS"`

	// Broadcaster
	BroadcastRetries int           `json:"broadcastRetries"`
	BroadcastBackoff time.Duration `json:"broadcastBackoff"`

	// Coordination store
	RedisAddr string `json:"redisAddr"`
	RedisDB   int    `json:"redisDB"`

	// HTTP
	Port          string   `json:"port"`
	CORSAllowList []string `json:"corsAllowList"`
}

// Default returns the spec-mandated defaults.
func Default() Config {
	return Config{
		FieldW:    800,
		FieldH:    600,
		PaddleH:   100,
		PaddleW:   16,
		BallSize:  16,
		Collision: 4,

		PaddleSpeed:   6,
		BotSpeedFactor: 0.85,
		BallSpeed:     6,
		WinScore:      5,

		BaseTick:    33 * time.Millisecond,
		ClientSync:  100 * time.Millisecond,
		DeltaTime:   0.033,
		IdleTick:    500 * time.Millisecond,
		LightTick:   66 * time.Millisecond,
		ErrorBackoff: 100 * time.Millisecond,
		LightLoadAt: 3,

		InputTTL: 5 * time.Second,
		InputQPS: 30,

		BroadcastRetries: 3,
		BroadcastBackoff: 100 * time.Millisecond,

		RedisAddr: "localhost:6379",
		RedisDB:   0,

		Port:          "8080",
		CORSAllowList: []string{"*"},
	}
}

// FromEnv overlays process environment variables on top of Default, mirroring
// the teacher's practice of handing callers a ready-to-use Config they may
// override field-by-field rather than reaching for a dedicated flags library.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("CORS_ALLOW_LIST"); v != "" {
		cfg.CORSAllowList = strings.Split(v, ",")
	}
	if v := os.Getenv("BASE_TICK_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BaseTick = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("CLIENT_SYNC_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ClientSync = time.Duration(n) * time.Millisecond
		}
	}

	return cfg
}

// FastTestConfig returns a config tuned for fast, deterministic tests,
// mirroring the teacher's FastGameConfig test helper.
func FastTestConfig() Config {
	cfg := Default()
	cfg.BaseTick = time.Millisecond
	cfg.ClientSync = time.Millisecond
	cfg.IdleTick = time.Millisecond
	cfg.LightTick = time.Millisecond
	cfg.InputTTL = 200 * time.Millisecond
	return cfg
}
