// Package httpapi exposes the assistant over HTTP: a server-sent-events chat
// endpoint plus JSON endpoints for sessions, messages, memories and retrieval
// queries.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/tobmae/soulchat/agent"
	"github.com/tobmae/soulchat/logging"
	"github.com/tobmae/soulchat/memory"
	"github.com/tobmae/soulchat/rag"
	"github.com/tobmae/soulchat/session"
)

// Server routes API requests to the agent and its stores.
type Server struct {
	agent     *agent.Agent
	sessions  session.Store
	memories  memory.Store
	retriever *rag.Retriever
	logger    logging.Logger
	mux       *http.ServeMux
}

// NewServer wires the handler tree. The retriever may be nil, which disables
// the query endpoint's results (it returns empty matches).
func NewServer(a *agent.Agent, sessions session.Store, memories memory.Store, retriever *rag.Retriever, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	s := &Server{
		agent:     a,
		sessions:  sessions,
		memories:  memories,
		retriever: retriever,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleListMessages)
	s.mux.HandleFunc("POST /api/sessions/{id}/chat", s.handleChat)

	s.mux.HandleFunc("GET /api/memories", s.handleListMemories)
	s.mux.HandleFunc("DELETE /api/memories/{id}", s.handleDeleteMemory)

	s.mux.HandleFunc("POST /api/rag/query", s.handleRAGQuery)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON parses a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
