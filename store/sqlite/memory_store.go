package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tobmae/soulchat/memory"
)

// MemoryStore implements memory.Store on SQLite. Relevance ranking happens
// in-process via memory.Rank; SQLite only narrows by type.
type MemoryStore struct {
	db *sql.DB
}

// NewMemoryStore creates a memory store over an opened database.
func NewMemoryStore(d *DB) *MemoryStore {
	return &MemoryStore{db: d.db}
}

var _ memory.Store = (*MemoryStore)(nil)

func (s *MemoryStore) Save(ctx context.Context, t memory.Type, content string, tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("save memory: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, type, content, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(t), content, string(tagsJSON), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("save memory: %w", err)
	}
	return id, nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, t memory.Type, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = memory.DefaultSearchLimit
	}
	records, err := s.List(ctx, t)
	if err != nil {
		return nil, err
	}
	ranked := memory.Rank(records, query)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *MemoryStore) List(ctx context.Context, t memory.Type) ([]memory.Record, error) {
	q := `SELECT id, type, content, tags, created_at FROM memories`
	args := []any{}
	if t != "" {
		q += ` WHERE type = ?`
		args = append(args, string(t))
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var records []memory.Record
	for rows.Next() {
		var rec memory.Record
		var typ, tagsJSON, createdAt string
		if err := rows.Scan(&rec.ID, &typ, &rec.Content, &tagsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("list memories: %w", err)
		}
		rec.Type = memory.Type(typ)
		if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
			rec.Tags = nil
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	// Absent ids are not an error.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}
