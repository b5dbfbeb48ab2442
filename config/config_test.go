package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobmae/soulchat/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, model.DefaultModel, cfg.Model.ID)
	assert.Equal(t, int64(4096), cfg.Model.MaxTokens)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
model:
  provider: openai
  id: gpt-4o
agent:
  turn_timeout: 5m
paths:
  soul: persona/SOUL.md
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.ID)
	assert.Equal(t, 5*time.Minute, cfg.Agent.TurnTimeout.Std())
	assert.Equal(t, "persona/SOUL.md", cfg.Paths.Soul)
	// Untouched sections keep defaults.
	assert.Equal(t, int64(4096), cfg.Model.MaxTokens)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o644))

	t.Setenv("SOULCHAT_ADDR", ":7777")
	t.Setenv("SOULCHAT_MODEL_ID", "claude-sonnet-4-6")
	t.Setenv("SOULCHAT_REQUEST_TIMEOUT", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "claude-sonnet-4-6", cfg.Model.ID)
	assert.Equal(t, 30*time.Second, cfg.Agent.RequestTimeout.Std())
}

func TestLoadProviderAPIKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("SOULCHAT_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Model.APIKey)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("SOULCHAT_MODEL_PROVIDER", "llamacpp")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
