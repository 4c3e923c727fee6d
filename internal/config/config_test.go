package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "production")
	t.Setenv("ASSISTANT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NOTION_API_KEY", "secret_notion")
	t.Setenv("MEM0AI_API_KEY", "m0-key")
	t.Setenv("GROQ_API_KEY", "gsk_key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, cfg.LLMProvider)
	assert.Equal(t, "llama3-8b-8192", cfg.LLMModel)
	assert.Equal(t, 5, cfg.MaxRounds)
	assert.Equal(t, 5, cfg.MemoryMaxResults)
	assert.Equal(t, float32(0.7), cfg.Temperature)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "gsk_key", cfg.ProviderAPIKey())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadMissingKeys(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ASSISTANT_CONFIG", "")
	for _, k := range []string{"NOTION_API_KEY", "MEM0AI_API_KEY", "MEM0_API_KEY", "GROQ_API_KEY"} {
		t.Setenv(k, "")
	}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTION_API_KEY is required")
	assert.Contains(t, err.Error(), "MEM0AI_API_KEY")
	assert.Contains(t, err.Error(), "GROQ_API_KEY is required")
}

func TestMem0KeyAlias(t *testing.T) {
	setRequired(t)
	t.Setenv("MEM0AI_API_KEY", "")
	t.Setenv("MEM0_API_KEY", "alias-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "alias-key", cfg.Mem0APIKey)
}

func TestUnsupportedProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "cohere")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestAnthropicProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.LLMProvider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.LLMModel)
	assert.Equal(t, "sk-ant", cfg.ProviderAPIKey())
}

func TestBehaviourFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: gemini
model: gemini-1.5-pro
temperature: 0.2
max_rounds: 3
instructions:
  - Always answer in English.
`), 0o600))
	t.Setenv("ASSISTANT_CONFIG", path)
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("MAX_TOOL_ROUNDS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, "gemini-1.5-pro", cfg.LLMModel)
	assert.Equal(t, float32(0.2), cfg.Temperature)
	assert.Equal(t, 4, cfg.MaxRounds, "environment wins over the file")
	assert.Equal(t, []string{"Always answer in English."}, cfg.Instructions)
}

func TestBehaviourFileInvalid(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_rounds: [oops"), 0o600))
	t.Setenv("ASSISTANT_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
