package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhriadk/calmbot/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.ModeLocal, cfg.Mode)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, config.ProviderMock, cfg.LLMProvider)
	assert.Equal(t, 60*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, "@every 5m", cfg.ReapSchedule)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CALMBOT_PORT", "9090")
	t.Setenv("CALMBOT_STORAGE_BACKEND", "sqlite")
	t.Setenv("CALMBOT_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CALMBOT_COMPLETION_TIMEOUT", "15s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, config.ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, 15*time.Second, cfg.CompletionTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"firestore without project": {"CALMBOT_STORAGE_BACKEND": "firestore"},
		"unknown backend":           {"CALMBOT_STORAGE_BACKEND": "redis"},
		"openai without key":        {"CALMBOT_LLM_PROVIDER": "openai", "OPENAI_API_KEY": ""},
		"gemini without key":        {"CALMBOT_LLM_PROVIDER": "gemini", "GEMINI_API_KEY": "", "CALMBOT_GCP_PROJECT": ""},
		"gcp without client id":     {"CALMBOT_MODE": "gcp"},
		"zero timeout":              {"CALMBOT_COMPLETION_TIMEOUT": "0s"},
		"unknown mode":              {"CALMBOT_MODE": "prod"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestPersonaPrompt(t *testing.T) {
	cfg := &config.Config{}
	p, err := cfg.PersonaPrompt()
	require.NoError(t, err)
	assert.Empty(t, p)

	path := filepath.Join(t.TempDir(), "persona.txt")
	require.NoError(t, os.WriteFile(path, []byte("  be gentle \n"), 0o600))
	cfg.PersonaPromptPath = path
	p, err = cfg.PersonaPrompt()
	require.NoError(t, err)
	assert.Equal(t, "be gentle", p)

	cfg.PersonaPromptPath = filepath.Join(t.TempDir(), "missing.txt")
	_, err = cfg.PersonaPrompt()
	assert.Error(t, err)
}
