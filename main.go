// Command pongserver is the composition root: it wires configuration, the
// session/input/matchqueue stores, the bollywood actor engine running the
// Scheduler, the Broadcaster, and the HTTP/websocket server, then serves
// until an interrupt triggers a drain-then-terminate shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pongarena/server/broadcaster"
	"github.com/pongarena/server/config"
	"github.com/pongarena/server/input"
	"github.com/pongarena/server/internal/bollywood"
	"github.com/pongarena/server/matchqueue"
	"github.com/pongarena/server/scheduler"
	"github.com/pongarena/server/server"
	"github.com/pongarena/server/session"
	"github.com/pongarena/server/sim"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg := config.FromEnv()
	log.Infow("configuration loaded", "port", cfg.Port, "redisAddr", cfg.RedisAddr, "baseTick", cfg.BaseTick)

	queue := newMatchQueue(cfg, log)

	store := session.NewStore()
	cache := input.New(cfg.InputTTL, cfg.InputQPS, 0, cfg.FieldH-cfg.PaddleH)
	registry := broadcaster.NewRegistry()
	bc := broadcaster.New(registry, log, cfg.BroadcastRetries, cfg.BroadcastBackoff)
	engineSim := sim.New(cfg, time.Now().UnixNano())

	actorEngine := bollywood.NewEngine(log)

	schedulerProps := bollywood.NewProps(scheduler.New(cfg, store, cache, engineSim, bc, log))
	schedulerPID := actorEngine.Spawn(schedulerProps)
	if schedulerPID == nil {
		log.Fatal("failed to spawn scheduler actor")
	}

	health := server.NewHealthChecker(queue, store)
	deps := server.Deps{
		Cfg:      cfg,
		Store:    store,
		Queue:    queue,
		Cache:    cache,
		Bc:       bc,
		Registry: registry,
		Log:      log,
	}
	srv := server.New(cfg, actorEngine, deps, health, log)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Mux(),
	}

	go func() {
		log.Infow("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("http server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	scheduler.RequestShutdown(actorEngine, schedulerPID)
	time.Sleep(2 * cfg.BaseTick)

	actorEngine.Shutdown(5 * time.Second)
	log.Info("shutdown complete")
}

func newMatchQueue(cfg config.Config, log *zap.SugaredLogger) matchqueue.Queue {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnw("coordination store unreachable at startup, matchmaking requests will be refused until it recovers", "err", err)
	}
	return matchqueue.NewRedis(client)
}
