// Package tool implements the tool calling subsystem that lets the agent loop
// invoke structured capabilities with schema validated arguments and
// consistent error handling. The four memory tools bridged to a memory.Store
// live here alongside the registry that dispatches model tool calls.
package tool

import (
	"context"
	"fmt"

	"github.com/tobmae/soulchat/internal/util"
)

// Tool defines a structured capability the model can invoke.
//
// Tool implementations should provide clear names and descriptions, define a
// proper JSON schema for their input and be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description returns a human-readable description provided to the model
	// so it understands when and how to use the tool.
	Description() string

	// InputSchema returns a JSON schema describing the expected input.
	// The schema is exposed to the model and used for argument validation
	// before dispatch.
	InputSchema() map[string]any

	// Call executes the tool with already-validated arguments. The returned
	// value must be JSON-serializable; it becomes the tool result payload.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents argument validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used for categorizing tool failures.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeUnknown    = "UNKNOWN_TOOL"
)

// Error represents a failure during tool dispatch or execution.
type Error struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates a new Error with the specified details.
func NewError(tool, message, code string) *Error {
	return &Error{Tool: tool, Message: message, Code: code}
}
