package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type LLMProvider string

const (
	ProviderMock   LLMProvider = "mock"
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

type Config struct {
	Mode     Mode   `env:"CALMBOT_MODE" envDefault:"local"`
	Port     string `env:"CALMBOT_PORT" envDefault:"8080"`
	LogLevel string `env:"CALMBOT_LOG_LEVEL" envDefault:"info"`

	// Storage
	StorageBackend   string        `env:"CALMBOT_STORAGE_BACKEND" envDefault:"memory"` // "memory", "firestore" o "sqlite"
	SQLitePath       string        `env:"CALMBOT_SQLITE_PATH" envDefault:"./data/calmbot.db"`
	SQLitePollPeriod time.Duration `env:"CALMBOT_SQLITE_POLL_INTERVAL" envDefault:"1s"`

	GCPProjectID string `env:"CALMBOT_GCP_PROJECT"`
	GCPLocation  string `env:"CALMBOT_GCP_LOCATION" envDefault:"us-central1"`

	// LLM settings
	LLMProvider       LLMProvider   `env:"CALMBOT_LLM_PROVIDER" envDefault:"mock"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	ModelName         string        `env:"CALMBOT_MODEL_NAME" envDefault:"gemini-2.0-flash-lite"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	CompletionTimeout time.Duration `env:"CALMBOT_COMPLETION_TIMEOUT" envDefault:"60s"`

	// Prompts
	PersonaPromptPath string `env:"CALMBOT_PERSONA_PROMPT_PATH"`

	// Sessions
	SessionIdleTTL time.Duration `env:"CALMBOT_SESSION_IDLE_TTL" envDefault:"30m"`
	ReapSchedule   string        `env:"CALMBOT_REAP_SCHEDULE" envDefault:"@every 5m"`

	// Identity
	GoogleClientID string `env:"CALMBOT_GOOGLE_CLIENT_ID"`
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeGCP:
	default:
		return fmt.Errorf("unknown CALMBOT_MODE %q", c.Mode)
	}

	switch c.StorageBackend {
	case "memory", "sqlite":
	case "firestore":
		if c.GCPProjectID == "" {
			return fmt.Errorf("CALMBOT_GCP_PROJECT is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown CALMBOT_STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.LLMProvider {
	case ProviderMock:
	case ProviderGemini:
		if c.GeminiAPIKey == "" && c.GCPProjectID == "" {
			return fmt.Errorf("gemini provider needs GEMINI_API_KEY or CALMBOT_GCP_PROJECT")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown CALMBOT_LLM_PROVIDER %q", c.LLMProvider)
	}

	// Minimal validation in GCP mode
	if c.Mode == ModeGCP && c.GoogleClientID == "" {
		return fmt.Errorf("CALMBOT_GOOGLE_CLIENT_ID must be set in gcp mode")
	}
	if c.CompletionTimeout <= 0 {
		return fmt.Errorf("CALMBOT_COMPLETION_TIMEOUT must be > 0")
	}
	return nil
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// PersonaPrompt returns the persona override file contents, or "" when unset
// or unreadable.
func (c *Config) PersonaPrompt() (string, error) {
	if c.PersonaPromptPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.PersonaPromptPath)
	if err != nil {
		return "", fmt.Errorf("read persona prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
