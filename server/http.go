package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/pongarena/server/config"
	"github.com/pongarena/server/internal/bollywood"
	"go.uber.org/zap"
)

// Server owns the HTTP surface: the health endpoint and the websocket
// upgrade that spawns one Hub actor per connection.
type Server struct {
	cfg    config.Config
	engine *bollywood.Engine
	deps   Deps
	health *HealthChecker
	log    *zap.SugaredLogger
}

// New builds the Server. deps is shared, read-only configuration handed to
// every Hub actor spawned for an incoming connection.
func New(cfg config.Config, engine *bollywood.Engine, deps Deps, health *HealthChecker, log *zap.SugaredLogger) *Server {
	return &Server{cfg: cfg, engine: engine, deps: deps, health: health, log: log}
}

// Mux returns the configured http.ServeMux, ready to pass to
// http.ListenAndServe.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthcheck", s.withCORS(s.handleHealthCheck))
	mux.Handle("/subscribe", websocket.Handler(s.handleSubscribe))
	return mux
}

func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next(w, r)
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.CORSAllowList {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := s.health.Check(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "Healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorw("server: failed to write health response", "err", err)
	}
}

// handleSubscribe upgrades the connection, spawns a Hub actor for it, and
// blocks until the Hub fully stops so the transport doesn't tear down the
// socket mid-cleanup.
func (s *Server) handleSubscribe(ws *websocket.Conn) {
	playerID := ws.Request().URL.Query().Get("playerId")
	if playerID == "" {
		playerID = uuid.NewString()
	}

	producer, done := NewHubProducer(playerID, ws, s.deps)
	pid := s.engine.Spawn(bollywood.NewProps(producer))
	if pid == nil {
		s.log.Warnw("server: engine refused to spawn hub, shutting down connection", "playerID", playerID)
		_ = ws.Close()
		return
	}

	<-done
}
