// Package agent drives one conversational turn against a language model: it
// assembles the system prompt, streams incremental text, executes requested
// tools and feeds their results back, iterating until the model stops calling
// tools or the iteration budget is exhausted. Callers consume the turn as an
// ordered event stream closed by exactly one terminal event.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tobmae/soulchat/logging"
	"github.com/tobmae/soulchat/model"
	"github.com/tobmae/soulchat/persona"
	"github.com/tobmae/soulchat/rag"
	"github.com/tobmae/soulchat/tool"
)

const (
	// MaxIterations caps tool-calling round-trips within one turn. Hitting
	// the cap is graceful termination, not an error.
	MaxIterations = 10

	// DefaultMaxTokens is the per-request completion token limit.
	DefaultMaxTokens = 4096

	// DefaultRequestTimeout bounds a single model call.
	DefaultRequestTimeout = 2 * time.Minute

	// DefaultTurnTimeout bounds a whole turn across all iterations.
	DefaultTurnTimeout = 10 * time.Minute
)

// ErrRequestTimeout marks a single model call exceeding its deadline.
var ErrRequestTimeout = errors.New("model request timed out")

// ErrTurnTimeout marks a whole turn exceeding its wall-clock deadline.
var ErrTurnTimeout = errors.New("turn timed out")

// Agent runs turns. All fields are set at construction and safe for
// concurrent turns.
type Agent struct {
	model          model.Model
	tools          *tool.Registry
	loader         *persona.Loader
	retriever      *rag.Retriever
	logger         logging.Logger
	modelID        string
	maxTokens      int64
	requestTimeout time.Duration
	turnTimeout    time.Duration
}

// Option configures an Agent.
type Option func(*Agent)

// WithModelID overrides the model identifier used for requests and pricing.
func WithModelID(id string) Option {
	return func(a *Agent) { a.modelID = id }
}

// WithMaxTokens overrides the per-request completion token limit.
func WithMaxTokens(n int64) Option {
	return func(a *Agent) { a.maxTokens = n }
}

// WithRetriever attaches a RAG retriever; without one, turns run on the
// persona prompt alone.
func WithRetriever(r *rag.Retriever) Option {
	return func(a *Agent) { a.retriever = r }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithRequestTimeout bounds each individual model call.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *Agent) { a.requestTimeout = d }
}

// WithTurnTimeout bounds the whole turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(a *Agent) { a.turnTimeout = d }
}

// New creates an Agent over a model, a tool registry and a persona loader.
func New(m model.Model, tools *tool.Registry, loader *persona.Loader, opts ...Option) *Agent {
	a := &Agent{
		model:          m,
		tools:          tools,
		loader:         loader,
		logger:         logging.NoOpLogger{},
		modelID:        model.DefaultModel,
		maxTokens:      DefaultMaxTokens,
		requestTimeout: DefaultRequestTimeout,
		turnTimeout:    DefaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// turnState tracks accumulation across iterations of one turn.
type turnState struct {
	inputTokens  int64
	outputTokens int64
	fullText     string
}

// RunTurn executes one turn over the given conversation and returns its
// event stream. The channel is unbuffered: the producer suspends between
// events and resumes when the caller reads, so backpressure is caller-driven.
// The channel is closed after the terminal event. Cancelling ctx aborts the
// turn; the error event is delivered best-effort before the channel closes,
// since a cancelled caller may have stopped reading.
func (a *Agent) RunTurn(ctx context.Context, messages []model.Message) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		a.run(ctx, messages, events)
	}()
	return events
}

func (a *Agent) run(parent context.Context, messages []model.Message, events chan<- Event) {
	ctx, cancel := context.WithTimeoutCause(parent, a.turnTimeout, ErrTurnTimeout)
	defer cancel()

	system := a.systemPrompt(messages)
	convo := append([]model.Message(nil), messages...)
	state := &turnState{}

	for iteration := 1; iteration <= MaxIterations; iteration++ {
		resp, err := a.streamIteration(ctx, system, convo, state, events)
		if err != nil {
			a.logger.Error("turn aborted", "iteration", iteration, "error", err.Error())
			emit(parent, events, ErrorEvent{Err: err})
			return
		}

		toolUses := resp.Message.ToolUses()
		if len(toolUses) == 0 {
			break
		}

		results, err := a.executeTools(ctx, toolUses, events)
		if err != nil {
			emit(parent, events, ErrorEvent{Err: err})
			return
		}
		convo = append(convo, resp.Message, model.Message{Role: model.RoleUser, Parts: results})
	}

	emit(parent, events, DoneEvent{
		Usage: UsageTotals{
			InputTokens:  state.inputTokens,
			OutputTokens: state.outputTokens,
			CostUsd:      model.Cost(a.modelID, state.inputTokens, state.outputTokens),
		},
		FullText: state.fullText,
	})
}

// streamIteration runs one model call, forwarding text deltas and folding
// usage into the running totals.
func (a *Agent) streamIteration(ctx context.Context, system string, convo []model.Message, state *turnState, events chan<- Event) (model.Response, error) {
	reqCtx, cancel := context.WithTimeoutCause(ctx, a.requestTimeout, ErrRequestTimeout)
	defer cancel()

	start := time.Now()
	responses, errs := a.model.Generate(reqCtx, model.Request{
		Model:     a.modelID,
		MaxTokens: a.maxTokens,
		System:    system,
		Tools:     a.tools.Definitions(),
		Messages:  convo,
	})

	var final model.Response
	var gotFinal, done bool
	for !done {
		select {
		case resp, ok := <-responses:
			if !ok {
				done = true
				break
			}
			if resp.Partial {
				if text := resp.Message.Text(); text != "" {
					state.fullText += text
					if !emit(ctx, events, TextEvent{Text: text}) {
						return model.Response{}, turnErr(ctx)
					}
				}
				continue
			}
			final = resp
			gotFinal = true
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return model.Response{}, err
			}
		case <-reqCtx.Done():
			return model.Response{}, requestErr(ctx, reqCtx)
		}
	}

	if !gotFinal {
		// The response channel can close before its paired error is read.
		if errs != nil {
			select {
			case err, ok := <-errs:
				if ok && err != nil {
					return model.Response{}, err
				}
			case <-reqCtx.Done():
				return model.Response{}, requestErr(ctx, reqCtx)
			}
		}
		if reqCtx.Err() != nil {
			return model.Response{}, requestErr(ctx, reqCtx)
		}
		return model.Response{}, errors.New("model stream ended without a final response")
	}

	in, out := usageTokens(final.Usage)
	state.inputTokens += in
	state.outputTokens += out
	logging.LogModelCall(a.logger, a.modelID, in, out, time.Since(start), nil)
	return final, nil
}

// executeTools runs each requested tool and wraps its payload as a tool
// result part. Tool failures become error-flagged results for the model to
// recover from, not turn failures.
func (a *Agent) executeTools(ctx context.Context, uses []model.ToolUsePart, events chan<- Event) ([]model.Part, error) {
	results := make([]model.Part, 0, len(uses))
	for _, use := range uses {
		if !emit(ctx, events, ToolUseEvent{Name: use.Name, Input: use.Input}) {
			return nil, turnErr(ctx)
		}
		payload, isErr := a.tools.Execute(ctx, use.Name, use.Input)
		results = append(results, model.ToolResultPart{
			ToolUseID: use.ID,
			Content:   payload,
			IsError:   isErr,
		})
	}
	return results, nil
}

// systemPrompt assembles persona, skills and retrieved context. Computed once
// per turn; tool-calling iterations do not re-run retrieval.
func (a *Agent) systemPrompt(messages []model.Message) string {
	prompt := a.loader.SystemPrompt()
	if a.retriever == nil {
		return prompt
	}
	query := latestUserText(messages)
	if query == "" {
		return prompt
	}
	if section := a.retriever.ContextSection(query); section != "" {
		prompt += "\n\n" + section
	}
	return prompt
}

func latestUserText(messages []model.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}

// emit sends an event unless ctx is done. Reports whether the event was
// delivered. Incremental events pass the turn context so a timed-out turn
// stops streaming; terminal events pass the caller's context instead, so a
// turn timeout cannot race the consumer out of its terminal event — only a
// consumer that is itself gone skips delivery.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// turnErr maps a cancelled turn context onto its cause.
func turnErr(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ctx.Err()
}

// requestErr distinguishes a per-request deadline from turn-level
// cancellation.
func requestErr(ctx, reqCtx context.Context) error {
	if ctx.Err() != nil {
		return turnErr(ctx)
	}
	if cause := context.Cause(reqCtx); cause != nil {
		return cause
	}
	return reqCtx.Err()
}

func usageTokens(u *model.Usage) (int64, int64) {
	if u == nil {
		return 0, 0
	}
	return u.InputTokens, u.OutputTokens
}

// Describe returns a short identity string for logs and health endpoints.
func (a *Agent) Describe() string {
	return fmt.Sprintf("agent(model=%s, tools=%d)", a.modelID, len(a.tools.Definitions()))
}
