package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tobmae/soulchat"
	"github.com/tobmae/soulchat/agent"
	"github.com/tobmae/soulchat/config"
	"github.com/tobmae/soulchat/logging"
	"github.com/tobmae/soulchat/model"
	anthropicmodel "github.com/tobmae/soulchat/model/anthropic"
	openaimodel "github.com/tobmae/soulchat/model/openai"
	"github.com/tobmae/soulchat/persona"
	"github.com/tobmae/soulchat/store/sqlite"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.New(&logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	m, err := buildModel(cfg)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	app := soulchat.New(func(o *soulchat.Options) {
		o.Model = m
		o.SessionStore = sqlite.NewSessionStore(db)
		o.MemoryStore = sqlite.NewMemoryStore(db)
		o.SoulPath = cfg.Paths.Soul
		o.SkillsDir = cfg.Paths.Skills
		o.RAGDirs = cfg.Paths.RAGDirs
		o.Logger = logger
		o.AgentOptions = []agent.Option{
			agent.WithModelID(cfg.Model.ID),
			agent.WithMaxTokens(cfg.Model.MaxTokens),
			agent.WithRequestTimeout(cfg.Agent.RequestTimeout.Std()),
			agent.WithTurnTimeout(cfg.Agent.TurnTimeout.Std()),
		}
	})

	watcher, err := persona.NewWatcher(app.Loader(), logger)
	if err != nil {
		logger.Warn("persona watcher unavailable", "error", err.Error())
	} else {
		defer watcher.Close()
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: app.Handler(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr, "provider", cfg.Model.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildModel(cfg config.Config) (model.Model, error) {
	if cfg.Model.APIKey == "" {
		return nil, errors.New("no API key configured (set SOULCHAT_API_KEY or the provider's native variable)")
	}
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.APIKey = cfg.Model.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}
