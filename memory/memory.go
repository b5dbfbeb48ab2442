package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Type classifies how long a memory is meant to live and how it is used.
type Type string

const (
	// TypeSession is context specific to the current conversation.
	TypeSession Type = "session"
	// TypePersistent is an important fact to always remember.
	TypePersistent Type = "persistent"
	// TypeArchival is reference material, research summaries, detailed notes.
	TypeArchival Type = "archival"
)

// Valid reports whether t is one of the three known memory types.
func (t Type) Valid() bool {
	switch t {
	case TypeSession, TypePersistent, TypeArchival:
		return true
	}
	return false
}

// Record is a durable, typed fact stored for recall across turns and sessions.
type Record struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists memory records. Implementations must make Delete idempotent:
// deleting an absent id is not an error.
type Store interface {
	// Save persists a new record and returns its generated id.
	Save(ctx context.Context, t Type, content string, tags []string) (string, error)

	// Search performs a case-insensitive, relevance-ranked text match over
	// record content. An empty type matches all types. A limit <= 0 applies
	// the implementation default.
	Search(ctx context.Context, query string, t Type, limit int) ([]Record, error)

	// List returns all records, optionally filtered by type (empty = all).
	List(ctx context.Context, t Type) ([]Record, error)

	// Delete removes a record by id. Absent ids are ignored.
	Delete(ctx context.Context, id string) error
}

// DefaultSearchLimit caps Search results when the caller passes no limit.
const DefaultSearchLimit = 10

var searchTokenSplit = regexp.MustCompile(`\W+`)

// Rank scores records against a free-text query and returns matches ordered
// by descending score (ties keep input order). A record's score is the total
// number of case-insensitive occurrences of each query token of length >= 3.
// Shared by store implementations that have no native relevance ranking.
func Rank(records []Record, query string) []Record {
	tokens := searchTokens(query)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		rec   Record
		score int
	}
	matches := make([]scored, 0, len(records))
	for _, rec := range records {
		content := strings.ToLower(rec.Content)
		score := 0
		for _, tok := range tokens {
			score += strings.Count(content, tok)
		}
		if score > 0 {
			matches = append(matches, scored{rec: rec, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	ranked := make([]Record, len(matches))
	for i, m := range matches {
		ranked[i] = m.rec
	}
	return ranked
}

func searchTokens(query string) []string {
	var tokens []string
	for _, tok := range searchTokenSplit.Split(strings.ToLower(query), -1) {
		if len(tok) >= 3 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
