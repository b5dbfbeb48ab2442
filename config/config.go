// Package config loads runtime configuration from an optional YAML file with
// environment variable overrides. Environment always wins, so deployments can
// keep a checked-in base file and inject secrets separately.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tobmae/soulchat/model"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full runtime configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Agent  AgentConfig  `yaml:"agent"`
	Paths  PathsConfig  `yaml:"paths"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// ModelConfig selects the completion provider and model.
type ModelConfig struct {
	Provider  string `yaml:"provider"` // "anthropic" or "openai"
	ID        string `yaml:"id"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// AgentConfig tunes turn execution.
type AgentConfig struct {
	RequestTimeout Duration `yaml:"request_timeout"`
	TurnTimeout    Duration `yaml:"turn_timeout"`
}

// PathsConfig locates on-disk assets and the database.
type PathsConfig struct {
	Soul     string   `yaml:"soul"`
	Skills   string   `yaml:"skills"`
	Database string   `yaml:"database"`
	RAGDirs  []string `yaml:"rag_dirs"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Model: ModelConfig{
			Provider:  "anthropic",
			ID:        model.DefaultModel,
			MaxTokens: 4096,
		},
		Agent: AgentConfig{
			RequestTimeout: Duration(2 * time.Minute),
			TurnTimeout:    Duration(10 * time.Minute),
		},
		Paths: PathsConfig{
			Soul:     "SOUL.md",
			Skills:   ".agent/skills",
			Database: "soulchat.db",
			RAGDirs:  []string{".", ".agent/skills"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that precedence order. A missing file is fine; a
// malformed one is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SOULCHAT_ADDR")
	setString(&cfg.Model.Provider, "SOULCHAT_MODEL_PROVIDER")
	setString(&cfg.Model.ID, "SOULCHAT_MODEL_ID")
	setString(&cfg.Model.APIKey, "SOULCHAT_API_KEY")
	setInt64(&cfg.Model.MaxTokens, "SOULCHAT_MAX_TOKENS")
	setDuration(&cfg.Agent.RequestTimeout, "SOULCHAT_REQUEST_TIMEOUT")
	setDuration(&cfg.Agent.TurnTimeout, "SOULCHAT_TURN_TIMEOUT")
	setString(&cfg.Paths.Soul, "SOULCHAT_SOUL")
	setString(&cfg.Paths.Skills, "SOULCHAT_SKILLS")
	setString(&cfg.Paths.Database, "SOULCHAT_DATABASE")
	setString(&cfg.Log.Level, "SOULCHAT_LOG_LEVEL")
	setString(&cfg.Log.Format, "SOULCHAT_LOG_FORMAT")

	// Provider-native API key variables as fallbacks.
	if cfg.Model.APIKey == "" {
		switch cfg.Model.Provider {
		case "openai":
			cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

func (c Config) validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.Model.MaxTokens)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
