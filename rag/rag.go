// Package rag retrieves grounding context for a user message by keyword
// ranking over local markdown documents. Documents are split into paragraph
// chunks, scored by case-insensitive keyword occurrence and the top chunks
// are rendered as a system prompt section.
package rag

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tobmae/soulchat/logging"
)

const (
	// MaxChunkSize bounds the size of a single retrievable chunk.
	MaxChunkSize = 500

	// MaxFileSize is the per-document ceiling; larger files are skipped.
	MaxFileSize = 100 * 1024

	// DefaultTopK is the number of chunks returned by Retrieve.
	DefaultTopK = 5

	// minTokenLen filters out short stopword-like tokens.
	minTokenLen = 3
)

var tokenSplit = regexp.MustCompile(`\W+`)

// Chunk is a scored fragment of a source document.
type Chunk struct {
	Source  string `json:"source"`
	Content string `json:"content"`
	Score   int    `json:"score"`
}

// Retriever indexes markdown files from a set of directories on every call.
// The corpus is small and local, so re-reading keeps results fresh without a
// separate index lifecycle.
type Retriever struct {
	dirs   []string
	topK   int
	logger logging.Logger
}

// NewRetriever creates a Retriever over the given directories. Only the
// directories themselves are scanned, not their subtrees.
func NewRetriever(dirs []string, logger logging.Logger) *Retriever {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Retriever{dirs: dirs, topK: DefaultTopK, logger: logger}
}

// Retrieve returns the highest-scoring chunks for the query, best first.
// Queries with no usable keywords, and chunks that match none of them,
// yield no results.
func (r *Retriever) Retrieve(query string) []Chunk {
	keywords := Tokenize(query)
	if len(keywords) == 0 {
		return nil
	}

	var scored []Chunk
	for _, chunk := range r.collect() {
		score := scoreChunk(chunk.Content, keywords)
		if score == 0 {
			continue
		}
		chunk.Score = score
		scored = append(scored, chunk)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}
	return scored
}

// ContextSection renders retrieved chunks as a system prompt section, or ""
// when nothing relevant was found.
func (r *Retriever) ContextSection(query string) string {
	chunks := r.Retrieve(query)
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = "[" + chunk.Source + "]\n" + chunk.Content
	}
	return "# Retrieved Context (RAG)\n\n" +
		"The following context was retrieved from project documents and skills based on the user's query. Use it to inform your response:\n\n" +
		strings.Join(parts, "\n\n---\n\n")
}

// collect reads every eligible markdown file and splits it into chunks.
func (r *Retriever) collect() []Chunk {
	var chunks []Chunk
	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".md") {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.Size() > MaxFileSize {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				r.logger.Warn("document unreadable, skipping", "file", name, "error", err.Error())
				continue
			}
			for _, content := range SplitChunks(string(raw)) {
				chunks = append(chunks, Chunk{Source: name, Content: content})
			}
		}
	}
	return chunks
}

// Tokenize lowercases the query and keeps words of at least three characters.
func Tokenize(query string) []string {
	var tokens []string
	for _, tok := range tokenSplit.Split(strings.ToLower(query), -1) {
		if len(tok) >= minTokenLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// SplitChunks splits a document into paragraph-aligned chunks. Paragraphs are
// packed greedily up to MaxChunkSize; a single oversized paragraph becomes
// its own chunk rather than being split mid-sentence.
func SplitChunks(doc string) []string {
	var chunks []string
	var current string
	for _, para := range strings.Split(doc, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current != "" && len(current)+len(para)+2 > MaxChunkSize {
			chunks = append(chunks, current)
			current = para
			continue
		}
		if current == "" {
			current = para
		} else {
			current += "\n\n" + para
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// scoreChunk counts case-insensitive occurrences of each keyword.
func scoreChunk(content string, keywords []string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, kw := range keywords {
		score += strings.Count(lower, kw)
	}
	return score
}
