package tool

import (
	"context"

	"github.com/tobmae/soulchat/memory"
)

// MemoryTools returns the four memory tools bridged to the given store, in
// the order they are exposed to the model.
func MemoryTools(store memory.Store) []Tool {
	return []Tool{
		&saveMemoryTool{store: store},
		&searchMemoryTool{store: store},
		&getMemoriesTool{store: store},
		&deleteMemoryTool{store: store},
	}
}

var memoryTypeEnum = []string{
	string(memory.TypeSession),
	string(memory.TypePersistent),
	string(memory.TypeArchival),
}

// recordPayload is the wire shape of a memory record inside tool results.
type recordPayload struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"`
}

func toPayload(records []memory.Record) []recordPayload {
	out := make([]recordPayload, len(records))
	for i, r := range records {
		out[i] = recordPayload{
			ID:        r.ID,
			Type:      string(r.Type),
			Content:   r.Content,
			Tags:      r.Tags,
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return out
}

// save_memory

type saveMemoryTool struct{ store memory.Store }

func (t *saveMemoryTool) Name() string { return "save_memory" }

func (t *saveMemoryTool) Description() string {
	return "Save information to long-term memory. Use this proactively when you learn something important about the user, their preferences, projects, or any fact worth remembering."
}

func (t *saveMemoryTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type":        "string",
				"enum":        memoryTypeEnum,
				"description": "session = current conversation context, persistent = important facts to always remember, archival = reference material",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The information to save",
			},
			"tags": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": `Tags for categorization (e.g., ["preference", "name", "project"])`,
			},
		},
		"required": []string{"type", "content", "tags"},
	}
}

func (t *saveMemoryTool) Call(ctx context.Context, args map[string]any) (any, error) {
	typ, _ := args["type"].(string)
	content, _ := args["content"].(string)
	var tags []string
	if rawTags, ok := args["tags"].([]any); ok {
		for _, tag := range rawTags {
			if s, ok := tag.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	id, err := t.store.Save(ctx, memory.Type(typ), content, tags)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "id": id, "message": "Memory saved."}, nil
}

// search_memory

type searchMemoryTool struct{ store memory.Store }

func (t *searchMemoryTool) Name() string { return "search_memory" }

func (t *searchMemoryTool) Description() string {
	return "Search through saved memories using natural language. Use this before answering questions that might relate to past conversations or saved context."
}

func (t *searchMemoryTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural language search query",
			},
			"type": map[string]any{
				"type":        "string",
				"enum":        memoryTypeEnum,
				"description": "Optional: filter by memory type",
			},
			"limit": map[string]any{
				"type":        "number",
				"description": "Max results to return (default 10)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *searchMemoryTool) Call(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	typ, _ := args["type"].(string)
	limit := 0
	if n, ok := args["limit"].(float64); ok {
		limit = int(n)
	}

	results, err := t.store.Search(ctx, query, memory.Type(typ), limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": toPayload(results), "count": len(results)}, nil
}

// get_memories

type getMemoriesTool struct{ store memory.Store }

func (t *getMemoriesTool) Name() string { return "get_memories" }

func (t *getMemoriesTool) Description() string {
	return "Retrieve all memories, optionally filtered by type. Use this to review what you know about the user."
}

func (t *getMemoriesTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type":        "string",
				"enum":        memoryTypeEnum,
				"description": "Optional: filter by memory type. Omit to get all.",
			},
		},
		"required": []string{},
	}
}

func (t *getMemoriesTool) Call(ctx context.Context, args map[string]any) (any, error) {
	typ, _ := args["type"].(string)
	records, err := t.store.List(ctx, memory.Type(typ))
	if err != nil {
		return nil, err
	}
	return map[string]any{"memories": toPayload(records), "count": len(records)}, nil
}

// delete_memory

type deleteMemoryTool struct{ store memory.Store }

func (t *deleteMemoryTool) Name() string { return "delete_memory" }

func (t *deleteMemoryTool) Description() string {
	return "Delete a specific memory by its ID."
}

func (t *deleteMemoryTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": "The memory ID to delete",
			},
		},
		"required": []string{"id"},
	}
}

func (t *deleteMemoryTool) Call(ctx context.Context, args map[string]any) (any, error) {
	id, _ := args["id"].(string)
	if err := t.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "message": "Memory deleted."}, nil
}
