package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tobmae/soulchat/internal/util"
	"github.com/tobmae/soulchat/logging"
	"github.com/tobmae/soulchat/model"
)

// Registry holds the fixed tool set exposed to the model and dispatches tool
// calls by name. Dispatch never propagates a Go error to the loop: every
// failure is encoded as a serialized error payload so the model can react to
// it instead of aborting the turn.
type Registry struct {
	order  []string
	tools  map[string]Tool
	logger logging.Logger
}

// NewRegistry creates a registry over the given tools, preserving
// registration order for Definitions.
func NewRegistry(logger logging.Logger, tools ...Tool) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	r := &Registry{tools: make(map[string]Tool, len(tools)), logger: logger}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Definitions returns the tool schemas in registration order, ready to attach
// to a model request.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Execute runs a named tool call and returns the serialized result payload.
// isError reports whether the payload encodes a failure; it maps onto the
// tool result's error flag fed back to the model.
//
// Failure handling:
//   - unknown tool name        -> {"error": "unknown tool: X"}
//   - malformed input JSON     -> {"error": ...}
//   - schema validation error  -> {"error": ...}
//   - execution error          -> {"error": ...}
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (payload string, isError bool) {
	t, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name, "code", CodeUnknown)
		return errorPayload(fmt.Sprintf("unknown tool: %s", name)), true
	}

	args := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			r.logger.Warn("malformed tool input", "tool", name, "error", err.Error())
			return errorPayload(fmt.Sprintf("malformed input for %s: %v", name, err)), true
		}
	}

	if err := util.ValidateParameters(args, t.InputSchema()); err != nil {
		r.logger.Warn("tool input validation failed", "tool", name, "error", err.Error())
		return errorPayload(NewError(name, err.Error(), CodeValidation).Error()), true
	}

	start := time.Now()
	result, err := t.Call(ctx, args)
	logging.LogToolCall(r.logger, name, time.Since(start), err)
	if err != nil {
		if toolErr, ok := err.(*Error); ok {
			return errorPayload(toolErr.Error()), true
		}
		return errorPayload(NewError(name, err.Error(), CodeExecution).Error()), true
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorPayload(fmt.Sprintf("unserializable result from %s: %v", name, err)), true
	}
	return string(raw), false
}

func errorPayload(msg string) string {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return string(raw)
}
