// Package http exposes the engine as a JSON API for browser clients.
// Each session owns one engine instance; answers are checked server
// side so correct answers never travel to the client.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	fabula "github.com/fabulaverse/fabula"
	"github.com/fabulaverse/fabula/internal/logging"
	"github.com/fabulaverse/fabula/pkg/domain"
)

// EngineFactory builds one engine per session. Sessions share the
// backing cache when the factory wires the same one into each engine.
type EngineFactory func() (*fabula.Engine, error)

// Server holds the session registry and the HTTP surface.
type Server struct {
	factory EngineFactory
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*fabula.Engine
}

type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server that spawns engines with factory.
func NewServer(factory EngineFactory, opts ...Option) *Server {
	s := &Server{
		factory:  factory,
		logger:   logging.NewNop(),
		sessions: make(map[string]*fabula.Engine),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.deleteSession)
			r.Post("/subject", s.selectSubject)
			r.Get("/node", s.currentNode)
			r.Post("/advance", s.advance)
			r.Post("/answer", s.answer)
			r.Post("/restart", s.restart)
			r.Post("/avatar", s.avatar)
			r.Get("/welcome-image", s.welcomeImage)
			r.Delete("/cache", s.clearCache)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) engine(r *http.Request) (*fabula.Engine, string, bool) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	return e, id, ok
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlayerName string `json:"playerName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	engine, err := s.factory()
	if err != nil {
		s.logger.Error("engine factory failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	engine.RegisterPlayer(body.PlayerName)

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = engine
	s.mu.Unlock()

	s.logger.Info("session created", "session", id, "player", body.PlayerName)
	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId":  id,
		"playerName": body.PlayerName,
		"subjects":   engine.Subjects(),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selectSubject(w http.ResponseWriter, r *http.Request) {
	engine, id, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	var body struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Subject == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rn, err := engine.SelectSubject(r.Context(), body.Subject)
	if err != nil {
		s.writeEngineError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateView(engine, rn))
}

func (s *Server) currentNode(w http.ResponseWriter, r *http.Request) {
	engine, _, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	rn := engine.Resolved()
	if rn == nil {
		writeError(w, http.StatusConflict, "no subject selected")
		return
	}
	writeJSON(w, http.StatusOK, s.stateView(engine, rn))
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	engine, id, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	var body struct {
		NextNodeID string `json:"nextNodeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.NextNodeID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rn, err := engine.Advance(r.Context(), body.NextNodeID)
	if err != nil {
		s.writeEngineError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateView(engine, rn))
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	engine, id, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	ans, err := decodeAnswer(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, next, err := engine.Submit(r.Context(), ans)
	if err != nil {
		s.writeEngineError(w, id, err)
		return
	}

	resp := map[string]any{
		"outcome": outcomeView(outcome),
		"score":   engine.Score(),
	}
	if next != nil {
		resp["node"] = s.nodeView(engine, next)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	engine, id, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	var body struct {
		ToWelcome bool `json:"toWelcome"`
	}
	// An empty body means "restart the subject".
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.ToWelcome {
		engine.RestartToWelcome()
		writeJSON(w, http.StatusOK, map[string]any{"phase": engine.Snapshot().Phase})
		return
	}

	rn, err := engine.RestartSubject(r.Context())
	if err != nil {
		s.writeEngineError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateView(engine, rn))
}

func (s *Server) avatar(w http.ResponseWriter, r *http.Request) {
	engine, id, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	var body struct {
		Photo string `json:"photo"`
		Style string `json:"style"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Photo == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	img, err := engine.CaptureAvatar(r.Context(), body.Photo, body.Style)
	if err != nil {
		s.writeEngineError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar": img})
}

func (s *Server) welcomeImage(w http.ResponseWriter, r *http.Request) {
	engine, _, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"image": engine.WelcomeImage(r.Context()),
	})
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	engine, id, ok := s.engine(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err := engine.ClearCache(r.Context()); err != nil {
		s.writeEngineError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeEngineError(w http.ResponseWriter, session string, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrSubjectNotFound), errors.Is(err, domain.ErrNodeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrNoGraphLoaded),
		errors.Is(err, domain.ErrTerminal), errors.Is(err, domain.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInputInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		status = http.StatusInternalServerError
		s.logger.Error("request failed", "session", session, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
