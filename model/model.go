package model

import (
	"context"
	"encoding/json"
)

// Part represents a polymorphic segment of role-based message content.
// Concrete part types implement the unexported isPart marker enabling a
// closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ToolUsePart is a tool invocation requested by the model. Input carries the
// serialized argument payload exactly as the provider returned it.
type ToolUsePart struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (ToolUsePart) isPart() {}

// ToolResultPart carries the outcome of a previously requested tool
// invocation back to the model, keyed by the originating ToolUsePart ID.
type ToolResultPart struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (ToolResultPart) isPart() {}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message holds a conversation role plus ordered heterogeneous parts.
type Message struct {
	Role  string `json:"role"` // RoleUser or RoleAssistant
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a single-text-part message.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the message's text parts in order.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// ToolUses returns any tool invocation parts preserving their original order.
func (m Message) ToolUses() []ToolUsePart {
	var uses []ToolUsePart
	for _, p := range m.Parts {
		if tu, ok := p.(ToolUsePart); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// ToolDefinition declaratively exposes a callable tool to the model.
// InputSchema is a JSON Schema object (minimal subset).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request captures one streaming completion request.
type Request struct {
	Model     string           `json:"model"`
	MaxTokens int64            `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	Messages  []Message        `json:"messages"`
}

// Usage captures token counts for one completion request.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial responses carry an incremental text fragment; the final response
// carries the assembled assistant message, stop reason and usage.
type Response struct {
	Partial    bool
	Message    Message
	StopReason string
	Usage      *Usage
}

// Model is the minimal interface required to drive streaming generation with
// tool calling. Implementations must emit zero or more partial responses
// followed by exactly one final response on the first channel, or exactly one
// error on the second, then close both.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns metadata about the model implementation.
	Info() Info
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "anthropic", "openai", "scripted", ...
}
