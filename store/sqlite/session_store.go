package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tobmae/soulchat/session"
)

// timeLayout stores timestamps as RFC 3339 with sub-second precision so that
// lexical ordering matches temporal ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SessionStore implements session.Store on SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a session store over an opened database.
func NewSessionStore(d *DB) *SessionStore {
	return &SessionStore{db: d.db}
}

var _ session.Store = (*SessionStore)(nil)

func (s *SessionStore) CreateSession(ctx context.Context, title string) (*session.Session, error) {
	now := time.Now().UTC()
	sess := &session.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Title, now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, total_input_tokens, total_output_tokens, total_cost_usd, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) ListSessions(ctx context.Context) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, total_input_tokens, total_output_tokens, total_cost_usd, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	// ON DELETE CASCADE removes the session's messages.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) AppendMessage(ctx context.Context, msg session.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, input_tokens, output_tokens, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content,
		msg.InputTokens, msg.OutputTokens, msg.CostUsd, msg.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	return msg.ID, nil
}

func (s *SessionStore) ListMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, input_tokens, output_tokens, cost_usd, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []session.Message
	for rows.Next() {
		var msg session.Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&msg.InputTokens, &msg.OutputTokens, &msg.CostUsd, &createdAt); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		msg.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AddUsage applies the deltas with a single UPDATE, so concurrent turns on
// the same session cannot lose an update.
func (s *SessionStore) AddUsage(ctx context.Context, sessionID string, inputTokens, outputTokens int64, costUsd float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET total_input_tokens = total_input_tokens + ?,
		     total_output_tokens = total_output_tokens + ?,
		     total_cost_usd = total_cost_usd + ?,
		     updated_at = ?
		 WHERE id = ?`,
		inputTokens, outputTokens, costUsd, time.Now().UTC().Format(timeLayout), sessionID,
	)
	if err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var sess session.Session
	var createdAt, updatedAt string
	if err := row.Scan(&sess.ID, &sess.Title, &sess.TotalInputTokens, &sess.TotalOutputTokens,
		&sess.TotalCostUsd, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	sess.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	sess.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &sess, nil
}
