package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tobmae/soulchat/memory"
	"github.com/tobmae/soulchat/model"
	"github.com/tobmae/soulchat/persona"
	"github.com/tobmae/soulchat/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingModel captures every request passed to Generate.
type recordingModel struct {
	*model.ScriptedModel
	requests []model.Request
}

func (m *recordingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.requests = append(m.requests, req)
	return m.ScriptedModel.Generate(ctx, req)
}

func newTestAgent(t *testing.T, m model.Model, opts ...Option) (*Agent, *memory.InMemoryStore) {
	t.Helper()
	store := memory.NewInMemoryStore()
	registry := tool.NewRegistry(nil, tool.MemoryTools(store)...)
	loader := persona.NewLoader(filepath.Join(t.TempDir(), "SOUL.md"), filepath.Join(t.TempDir(), "skills"), nil)
	return New(m, registry, loader, opts...), store
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func userTurn(text string) []model.Message {
	return []model.Message{model.NewTextMessage(model.RoleUser, text)}
}

func toolUseMessage(id, name string, input map[string]any) model.Message {
	raw, _ := json.Marshal(input)
	return model.Message{Role: model.RoleAssistant, Parts: []model.Part{
		model.ToolUsePart{ID: id, Name: name, Input: raw},
	}}
}

func TestRunTurnTextOnly(t *testing.T) {
	scripted := model.NewScriptedModel(model.ScriptStep{
		Deltas:  []string{"Hel", "lo!"},
		Message: model.NewTextMessage(model.RoleAssistant, "Hello!"),
		Usage:   model.Usage{InputTokens: 10, OutputTokens: 5},
	})
	a, _ := newTestAgent(t, scripted)

	events := collect(t, a.RunTurn(context.Background(), userTurn("hi")))

	require.Len(t, events, 3)
	assert.Equal(t, TextEvent{Text: "Hel"}, events[0])
	assert.Equal(t, TextEvent{Text: "lo!"}, events[1])

	done, ok := events[2].(DoneEvent)
	require.True(t, ok)
	assert.Equal(t, "Hello!", done.FullText)
	assert.Equal(t, int64(10), done.Usage.InputTokens)
	assert.Equal(t, int64(5), done.Usage.OutputTokens)
	assert.InDelta(t, model.Cost(model.DefaultModel, 10, 5), done.Usage.CostUsd, 1e-12)
	assert.Equal(t, 1, scripted.Calls())
}

func TestRunTurnToolRoundTrip(t *testing.T) {
	scripted := model.NewScriptedModel(
		model.ScriptStep{
			Message: toolUseMessage("tu_1", "save_memory", map[string]any{
				"type": "persistent", "content": "user likes orchids", "tags": []string{"plants"},
			}),
			Usage: model.Usage{InputTokens: 100, OutputTokens: 20},
		},
		model.ScriptStep{
			Message: toolUseMessage("tu_2", "search_memory", map[string]any{"query": "orchids"}),
			Usage:   model.Usage{InputTokens: 150, OutputTokens: 30},
		},
		model.ScriptStep{
			Deltas:  []string{"You like orchids."},
			Message: model.NewTextMessage(model.RoleAssistant, "You like orchids."),
			Usage:   model.Usage{InputTokens: 200, OutputTokens: 40},
		},
	)
	rec := &recordingModel{ScriptedModel: scripted}
	a, store := newTestAgent(t, rec)

	events := collect(t, a.RunTurn(context.Background(), userTurn("what do I like?")))

	require.Len(t, events, 4)
	tu0, ok := events[0].(ToolUseEvent)
	require.True(t, ok)
	assert.Equal(t, "save_memory", tu0.Name)
	assert.Contains(t, string(tu0.Input), "user likes orchids")
	tu1, ok := events[1].(ToolUseEvent)
	require.True(t, ok)
	assert.Equal(t, "search_memory", tu1.Name)
	assert.Equal(t, TextEvent{Text: "You like orchids."}, events[2])

	done, ok := events[3].(DoneEvent)
	require.True(t, ok)
	assert.Equal(t, int64(450), done.Usage.InputTokens)
	assert.Equal(t, int64(90), done.Usage.OutputTokens)

	// The memory was actually written.
	records, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user likes orchids", records[0].Content)

	// The search result fed back to the model carries the saved record
	// unchanged.
	require.Len(t, rec.requests, 3)
	third := rec.requests[2].Messages
	last := third[len(third)-1]
	require.Equal(t, model.RoleUser, last.Role)
	result, ok := last.Parts[0].(model.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "tu_2", result.ToolUseID)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, records[0].ID)
	assert.Contains(t, result.Content, "user likes orchids")
}

func TestRunTurnIterationCap(t *testing.T) {
	// A model that always asks for a tool must still terminate.
	scripted := model.NewScriptedModel(model.ScriptStep{
		Message: toolUseMessage("tu", "get_memories", map[string]any{}),
		Usage:   model.Usage{InputTokens: 1, OutputTokens: 1},
	})
	a, _ := newTestAgent(t, scripted)

	events := collect(t, a.RunTurn(context.Background(), userTurn("loop forever")))

	assert.Equal(t, MaxIterations, scripted.Calls())

	var toolEvents int
	for _, ev := range events[:len(events)-1] {
		_, ok := ev.(ToolUseEvent)
		require.True(t, ok)
		toolEvents++
	}
	assert.Equal(t, MaxIterations, toolEvents)

	done, ok := events[len(events)-1].(DoneEvent)
	require.True(t, ok)
	assert.Equal(t, int64(MaxIterations), done.Usage.InputTokens)
}

func TestRunTurnModelError(t *testing.T) {
	scripted := model.NewScriptedModel(model.ScriptStep{
		Err: errors.New("provider unavailable"),
	})
	a, _ := newTestAgent(t, scripted)

	events := collect(t, a.RunTurn(context.Background(), userTurn("hi")))

	require.Len(t, events, 1)
	errEvent, ok := events[0].(ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, errEvent.Err.Error(), "provider unavailable")
}

func TestRunTurnUnknownToolFedBackAsError(t *testing.T) {
	scripted := model.NewScriptedModel(
		model.ScriptStep{
			Message: toolUseMessage("tu_1", "launch_rocket", map[string]any{}),
			Usage:   model.Usage{InputTokens: 1, OutputTokens: 1},
		},
		model.ScriptStep{
			Message: model.NewTextMessage(model.RoleAssistant, "I cannot do that."),
			Usage:   model.Usage{InputTokens: 1, OutputTokens: 1},
		},
	)
	rec := &recordingModel{ScriptedModel: scripted}
	a, _ := newTestAgent(t, rec)

	events := collect(t, a.RunTurn(context.Background(), userTurn("launch")))

	_, ok := events[len(events)-1].(DoneEvent)
	require.True(t, ok, "unknown tool must not abort the turn")

	require.Len(t, rec.requests, 2)
	msgs := rec.requests[1].Messages
	result, ok := msgs[len(msgs)-1].Parts[0].(model.ToolResultPart)
	require.True(t, ok)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown tool: launch_rocket")
}

func TestRunTurnCancellation(t *testing.T) {
	scripted := model.NewScriptedModel(model.ScriptStep{
		Deltas:  []string{"a", "b", "c", "d"},
		Message: model.NewTextMessage(model.RoleAssistant, "abcd"),
		Usage:   model.Usage{InputTokens: 1, OutputTokens: 1},
	})
	a, _ := newTestAgent(t, scripted)

	ctx, cancel := context.WithCancel(context.Background())
	events := a.RunTurn(ctx, userTurn("hi"))

	// Read one event, then walk away.
	<-events
	cancel()

	// The stream must close; goleak verifies the producer goroutine exits.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event stream did not close after cancellation")
		}
	}
}

func TestRunTurnTurnTimeoutAlwaysTerminates(t *testing.T) {
	// A turn deadline firing while the caller is still draining must never
	// swallow the terminal event.
	for i := 0; i < 50; i++ {
		scripted := model.NewScriptedModel(model.ScriptStep{
			Deltas:  []string{"never finishes"},
			Message: model.NewTextMessage(model.RoleAssistant, "x"),
			Usage:   model.Usage{InputTokens: 1, OutputTokens: 1},
		})
		slow := &stallingModel{inner: scripted}
		a, _ := newTestAgent(t, slow, WithTurnTimeout(5*time.Millisecond))

		events := collect(t, a.RunTurn(context.Background(), userTurn("hi")))

		require.NotEmpty(t, events, "stream closed without a terminal event")
		errEvent, ok := events[len(events)-1].(ErrorEvent)
		require.True(t, ok, "last event must be terminal")
		assert.ErrorIs(t, errEvent.Err, ErrTurnTimeout)
		for _, ev := range events[:len(events)-1] {
			_, terminal := ev.(ErrorEvent)
			_, done := ev.(DoneEvent)
			require.False(t, terminal || done, "terminal event must be last and unique")
		}
	}
}

func TestRunTurnRequestTimeout(t *testing.T) {
	scripted := model.NewScriptedModel(model.ScriptStep{
		Deltas:  []string{"never finishes"},
		Message: model.NewTextMessage(model.RoleAssistant, "x"),
		Usage:   model.Usage{InputTokens: 1, OutputTokens: 1},
	})
	slow := &stallingModel{inner: scripted}
	a, _ := newTestAgent(t, slow, WithRequestTimeout(20*time.Millisecond))

	events := collect(t, a.RunTurn(context.Background(), userTurn("hi")))

	require.NotEmpty(t, events)
	errEvent, ok := events[len(events)-1].(ErrorEvent)
	require.True(t, ok)
	assert.ErrorIs(t, errEvent.Err, ErrRequestTimeout)
}

// stallingModel never produces a response; channels stay open until ctx ends.
type stallingModel struct {
	inner model.Model
}

func (m *stallingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		<-ctx.Done()
	}()
	return respCh, errCh
}

func (m *stallingModel) Info() model.Info { return m.inner.Info() }
