package model

import (
	"context"
	"fmt"
	"sync"
)

// ScriptStep describes one scripted completion: the text deltas to stream,
// the final assistant message and its usage, or a terminal error.
type ScriptStep struct {
	Deltas  []string
	Message Message
	Usage   Usage
	Err     error
}

// ScriptedModel replays a fixed sequence of completions, one per Generate
// call. It is the stand-in for a real provider in tests: steps can force
// tool-use iterations, fixed usage figures or mid-stream failures.
type ScriptedModel struct {
	mu    sync.Mutex
	steps []ScriptStep
	calls int
}

// NewScriptedModel constructs a model that replays the given steps in order.
func NewScriptedModel(steps ...ScriptStep) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Calls reports how many Generate invocations have been made.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model. Each call consumes the next scripted step; calls
// beyond the script repeat the last step.
func (m *ScriptedModel) Generate(ctx context.Context, _ Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response)
	errCh := make(chan error, 1)

	m.mu.Lock()
	if len(m.steps) == 0 {
		m.mu.Unlock()
		close(respCh)
		errCh <- fmt.Errorf("scripted model: no steps configured")
		close(errCh)
		return respCh, errCh
	}
	idx := m.calls
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	step := m.steps[idx]
	m.calls++
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		for _, delta := range step.Deltas {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- Response{Partial: true, Message: NewTextMessage("assistant", delta)}:
			}
		}

		usage := step.Usage
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Message: step.Message, StopReason: "end_turn", Usage: &usage}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "scripted"}
}
