// Package soulchat provides a high-level façade over the agent loop and its
// services (persona, memory, sessions, retrieval & logging) for embedding the
// assistant in a host application. Most applications interact with this
// package by:
//  1. Creating a Soulchat via New() (optionally overriding default in-memory services)
//  2. Running turns with RunTurn, or mounting Handler() on an HTTP server
//
// All defaults are safe for local development and testing; production
// deployments typically supply the SQLite stores, a real model adapter and a
// structured logger.
package soulchat

import (
	"context"
	"net/http"

	"github.com/tobmae/soulchat/agent"
	"github.com/tobmae/soulchat/httpapi"
	"github.com/tobmae/soulchat/logging"
	"github.com/tobmae/soulchat/memory"
	"github.com/tobmae/soulchat/model"
	"github.com/tobmae/soulchat/persona"
	"github.com/tobmae/soulchat/rag"
	"github.com/tobmae/soulchat/session"
	"github.com/tobmae/soulchat/tool"
)

// Options configures the Soulchat instance.
type Options struct {
	// Model is the completion provider. Required for real use; defaults to a
	// scripted model with no steps, which fails every turn.
	Model model.Model

	// Stores (default to in-memory implementations if not provided).
	SessionStore session.Store
	MemoryStore  memory.Store

	// Persona sources.
	SoulPath  string
	SkillsDir string

	// RAGDirs enables retrieval over the given directories when non-empty.
	RAGDirs []string

	// ExtraTools are registered alongside the built-in memory tools.
	ExtraTools []tool.Tool

	// AgentOptions are applied to the underlying agent.
	AgentOptions []agent.Option

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Soulchat is the high-level façade aggregating the agent and its services.
type Soulchat struct {
	opts    Options
	agent   *agent.Agent
	loader  *persona.Loader
	handler http.Handler
}

// New creates a Soulchat instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Soulchat {
	opts := Options{
		Model:        model.NewScriptedModel(),
		SessionStore: session.NewInMemoryStore(),
		MemoryStore:  memory.NewInMemoryStore(),
		SoulPath:     "SOUL.md",
		SkillsDir:    ".agent/skills",
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	loader := persona.NewLoader(opts.SoulPath, opts.SkillsDir, opts.Logger)

	tools := tool.MemoryTools(opts.MemoryStore)
	tools = append(tools, opts.ExtraTools...)
	registry := tool.NewRegistry(opts.Logger, tools...)

	var retriever *rag.Retriever
	if len(opts.RAGDirs) > 0 {
		retriever = rag.NewRetriever(opts.RAGDirs, opts.Logger)
	}

	agentOpts := []agent.Option{agent.WithLogger(opts.Logger)}
	if retriever != nil {
		agentOpts = append(agentOpts, agent.WithRetriever(retriever))
	}
	agentOpts = append(agentOpts, opts.AgentOptions...)

	a := agent.New(opts.Model, registry, loader, agentOpts...)

	return &Soulchat{
		opts:    opts,
		agent:   a,
		loader:  loader,
		handler: httpapi.NewServer(a, opts.SessionStore, opts.MemoryStore, retriever, opts.Logger),
	}
}

// RunTurn executes one conversational turn. See agent.Agent.RunTurn.
func (s *Soulchat) RunTurn(ctx context.Context, messages []model.Message) <-chan agent.Event {
	return s.agent.RunTurn(ctx, messages)
}

// Handler returns the HTTP API for mounting on a server.
func (s *Soulchat) Handler() http.Handler {
	return s.handler
}

// Loader exposes the persona loader, e.g. for wiring a file watcher.
func (s *Soulchat) Loader() *persona.Loader {
	return s.loader
}
