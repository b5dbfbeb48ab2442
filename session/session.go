package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id does not resolve to a session.
var ErrNotFound = errors.New("session not found")

// Session is a conversation container carrying running token and cost totals
// accumulated across its turns.
type Session struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	TotalInputTokens  int64     `json:"totalInputTokens"`
	TotalOutputTokens int64     `json:"totalOutputTokens"`
	TotalCostUsd      float64   `json:"totalCostUsd"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Message is one persisted conversation entry. Usage fields are only set on
// assistant messages.
type Message struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	Role         string    `json:"role"` // "user" or "assistant"
	Content      string    `json:"content"`
	InputTokens  int64     `json:"inputTokens,omitempty"`
	OutputTokens int64     `json:"outputTokens,omitempty"`
	CostUsd      float64   `json:"costUsd,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists sessions and their message history.
//
// AddUsage must apply the token/cost deltas as an atomic increment, not a
// read-modify-write, so two turns finishing concurrently on the same session
// cannot lose an update.
type Store interface {
	CreateSession(ctx context.Context, title string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	// DeleteSession removes a session and all of its messages.
	DeleteSession(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, msg Message) (string, error)
	// ListMessages returns the session's messages in creation order.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)

	AddUsage(ctx context.Context, sessionID string, inputTokens, outputTokens int64, costUsd float64) error
}
