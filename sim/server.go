package sim

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/strategy"
)

// Config controls the simulated server.
type Config struct {
	// APIPath prefixes every route; the session id follows it.
	APIPath string
	Width   int
	Height  int
	// Gravity is how often playing pieces fall one row. Zero disables gravity.
	Gravity time.Duration
	// Seed fixes each session's piece sequence together with the session id.
	Seed int64
	// FailureRate is the fraction of HTTP requests answered with 503.
	FailureRate float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		APIPath: "/api/tetris/",
		Width:   10,
		Height:  20,
		Gravity: 500 * time.Millisecond,
		Seed:    1,
	}
}

// Server hosts one Game per session id, created on first use.
type Server struct {
	config Config
	logger *slog.Logger
	mux    *http.ServeMux

	upgrader websocket.Upgrader

	mu    sync.Mutex
	games map[string]*Game
	rng   *rand.Rand
}

// NewServer builds the routes. Call Run to start gravity.
func NewServer(config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if !strings.HasPrefix(config.APIPath, "/") {
		config.APIPath = "/" + config.APIPath
	}
	if !strings.HasSuffix(config.APIPath, "/") {
		config.APIPath += "/"
	}
	s := &Server{
		config: config,
		logger: logger,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		games: make(map[string]*Game),
		rng:   rand.New(rand.NewSource(config.Seed)),
	}
	prefix := config.APIPath + "{session}"
	s.mux.HandleFunc("GET "+prefix+"/status", s.withFaults(s.handleStatus))
	s.mux.HandleFunc("GET "+prefix+"/matrix", s.withFaults(s.handleMatrix))
	s.mux.HandleFunc("GET "+prefix+"/command", s.withFaults(s.handleCommand))
	s.mux.HandleFunc("GET "+prefix+"/ws", s.handleWS)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run applies gravity to every playing game until ctx is done.
func (s *Server) Run(ctx context.Context) {
	if s.config.Gravity <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(s.config.Gravity)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			for _, g := range s.games {
				g.Tick()
			}
			s.mu.Unlock()
		}
	}
}

// game returns the session's game, creating it on first use. Callers hold s.mu.
func (s *Server) game(id string) *Game {
	g, ok := s.games[id]
	if !ok {
		h := fnv.New64a()
		h.Write([]byte(id))
		g = NewGame(s.config.Width, s.config.Height, s.config.Seed^int64(h.Sum64()))
		s.games[id] = g
		s.logger.Info("New game", "session", id)
	}
	return g
}

// Stats returns a snapshot of every session's game.
func (s *Server) Stats() map[string]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Stats, len(s.games))
	for id, g := range s.games {
		out[id] = g.Stats()
	}
	return out
}

type statusBody struct {
	State       string `json:"state"`
	LastUpdated string `json:"lastUpdated"`
}

type matrixBody struct {
	Matrix []board.RawRow `json:"matrix"`
}

type commandBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) status(id string) statusBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game(id)
	return statusBody{State: g.State().String(), LastUpdated: g.LastUpdated().UTC().Format(time.RFC3339Nano)}
}

func (s *Server) matrix(id string) matrixBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return matrixBody{Matrix: board.Encode(s.game(id).Board())}
}

func (s *Server) command(id, raw string) commandBody {
	cmd, err := strategy.ParseCommand(raw)
	if err != nil {
		return commandBody{Success: false, Message: err.Error()}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game(id)
	ok, msg := g.Apply(cmd)
	if cmd.Control() {
		s.logger.Info("Control command", "session", id, "command", cmd, "ok", ok, "state", g.State())
	}
	return commandBody{Success: ok, Message: msg}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status(r.PathValue("session")))
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.matrix(r.PathValue("session")))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.command(r.PathValue("session"), r.URL.Query().Get("command")))
}

// withFaults fails a configured fraction of requests with 503.
func (s *Server) withFaults(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.FailureRate > 0 {
			s.mu.Lock()
			fail := s.rng.Float64() < s.config.FailureRate
			s.mu.Unlock()
			if fail {
				http.Error(w, "injected failure", http.StatusServiceUnavailable)
				return
			}
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type wsMessage struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

type wsReply struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleWS answers status, matrix and command requests on one connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "session", id, "error", err)
		return
	}
	defer conn.Close()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Websocket closed", "session", id, "error", err)
			}
			return
		}
		reply := wsReply{ID: msg.ID, Type: msg.Type}
		switch msg.Type {
		case "status":
			reply.Data = s.status(id)
		case "matrix":
			reply.Data = s.matrix(id)
		case "command":
			reply.Data = s.command(id, msg.Command)
		default:
			reply.Error = "unknown request type " + msg.Type
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
