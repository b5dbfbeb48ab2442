package agent

import "encoding/json"

// Event is one streamed item from a turn. Implementations form a closed set:
// TextEvent, ToolUseEvent, DoneEvent and ErrorEvent. Exactly one terminal
// event (DoneEvent or ErrorEvent) closes every turn.
type Event interface {
	eventType() string
}

// TextEvent carries an incremental text fragment of the assistant reply.
type TextEvent struct {
	Text string
}

// ToolUseEvent announces a tool invocation before it executes. Input is the
// serialized argument payload as the model produced it.
type ToolUseEvent struct {
	Name  string
	Input json.RawMessage
}

// UsageTotals is the cumulative usage across all model calls of a turn.
type UsageTotals struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostUsd      float64 `json:"costUsd"`
}

// DoneEvent is the successful terminal event with the full assistant text
// and cumulative usage.
type DoneEvent struct {
	Usage    UsageTotals
	FullText string
}

// ErrorEvent is the failure terminal event.
type ErrorEvent struct {
	Err error
}

func (TextEvent) eventType() string    { return "text" }
func (ToolUseEvent) eventType() string { return "tool_use" }
func (DoneEvent) eventType() string    { return "done" }
func (ErrorEvent) eventType() string   { return "error" }

// MarshalJSON renders the wire frame consumed by streaming clients.
func (e TextEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": "text", "text": e.Text})
}

func (e ToolUseEvent) MarshalJSON() ([]byte, error) {
	input := e.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return json.Marshal(map[string]any{"type": "tool_use", "name": e.Name, "input": input})
}

func (e DoneEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": "done", "usage": e.Usage, "fullText": e.FullText})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": "error", "error": e.Err.Error()})
}
