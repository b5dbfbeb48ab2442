package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireFrames(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "text",
			event: TextEvent{Text: "hello"},
			want:  `{"text":"hello","type":"text"}`,
		},
		{
			name:  "tool use",
			event: ToolUseEvent{Name: "save_memory", Input: json.RawMessage(`{"type":"persistent"}`)},
			want:  `{"input":{"type":"persistent"},"name":"save_memory","type":"tool_use"}`,
		},
		{
			name:  "tool use without input",
			event: ToolUseEvent{Name: "get_memories"},
			want:  `{"input":{},"name":"get_memories","type":"tool_use"}`,
		},
		{
			name: "done",
			event: DoneEvent{
				Usage:    UsageTotals{InputTokens: 10, OutputTokens: 5, CostUsd: 0.001},
				FullText: "hi",
			},
			want: `{"fullText":"hi","type":"done","usage":{"inputTokens":10,"outputTokens":5,"costUsd":0.001}}`,
		},
		{
			name:  "error",
			event: ErrorEvent{Err: errors.New("boom")},
			want:  `{"error":"boom","type":"error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}
