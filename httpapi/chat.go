package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tobmae/soulchat/agent"
	"github.com/tobmae/soulchat/model"
	"github.com/tobmae/soulchat/session"
)

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat runs one turn and streams its events as server-sent events. The
// user message is persisted before the turn starts; the assistant message and
// the session usage totals are written only on a successful terminal event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := r.PathValue("id")
	ctx := r.Context()

	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("load session failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}

	history, err := s.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		s.logger.Error("load history failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}

	if _, err := s.sessions.AppendMessage(ctx, session.Message{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   req.Message,
	}); err != nil {
		s.logger.Error("persist user message failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not persist message")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conversation := toModelMessages(history)
	conversation = append(conversation, model.NewTextMessage(model.RoleUser, req.Message))

	for ev := range s.agent.RunTurn(ctx, conversation) {
		writeFrame(w, flusher, ev)

		if done, ok := ev.(agent.DoneEvent); ok {
			s.persistAssistantTurn(r, sessionID, done)
		}
	}
}

// persistAssistantTurn stores the assistant reply and then adds the turn's
// usage to the session totals. Detached from request cancellation so a client
// that disconnects right after `done` cannot abort the writes.
func (s *Server) persistAssistantTurn(r *http.Request, sessionID string, done agent.DoneEvent) {
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.sessions.AppendMessage(ctx, session.Message{
		SessionID:    sessionID,
		Role:         model.RoleAssistant,
		Content:      done.FullText,
		InputTokens:  done.Usage.InputTokens,
		OutputTokens: done.Usage.OutputTokens,
		CostUsd:      done.Usage.CostUsd,
	}); err != nil {
		s.logger.Error("persist assistant message failed", "error", err.Error())
		return
	}
	if err := s.sessions.AddUsage(ctx, sessionID, done.Usage.InputTokens, done.Usage.OutputTokens, done.Usage.CostUsd); err != nil {
		s.logger.Error("add usage failed", "session", sessionID, "error", err.Error())
	}
}

// writeFrame serializes one event as an SSE frame and flushes it.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, ev agent.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		payload = []byte(`{"type":"error","error":"event serialization failed"}`)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// toModelMessages converts persisted history into model messages. Messages
// with empty content (aborted turns) are skipped.
func toModelMessages(history []session.Message) []model.Message {
	msgs := make([]model.Message, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		msgs = append(msgs, model.NewTextMessage(m.Role, m.Content))
	}
	return msgs
}
