// In file: internal/config/config.go

// Package config loads the assistant's configuration once at startup: secrets and
// endpoints from the environment (optionally via a .env file), behaviour tuning from an
// optional YAML file. Nothing else in the program reads the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported language model providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderMistral   = "mistral"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultModels is the model used per provider when none is configured.
var DefaultModels = map[string]string{
	ProviderGroq:      "llama3-8b-8192",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderMistral:   "mistral-small-latest",
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderGemini:    "gemini-1.5-flash",
}

// Config holds all configuration for the assistant.
type Config struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"notion-assistant"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ConfigFile      string        `env:"ASSISTANT_CONFIG" envDefault:"config.yaml"`

	NotionAPIKey     string        `env:"NOTION_API_KEY"`
	NotionBaseURL    string        `env:"NOTION_BASE_URL"`
	NotionTimeout    time.Duration `env:"NOTION_TIMEOUT" envDefault:"30s"`
	NotionRetryCount int           `env:"NOTION_RETRY_COUNT" envDefault:"2"`

	Mem0APIKey       string        `env:"MEM0AI_API_KEY"`
	Mem0APIKeyAlt    string        `env:"MEM0_API_KEY"`
	Mem0BaseURL      string        `env:"MEM0_BASE_URL"`
	Mem0Timeout      time.Duration `env:"MEM0_TIMEOUT" envDefault:"10s"`
	MemoryMaxResults int           `env:"MEMORY_MAX_RESULTS" envDefault:"5"`
	MemoryDedupTTL   time.Duration `env:"MEMORY_DEDUP_TTL" envDefault:"720h"`
	RedisAddr        string        `env:"REDIS_ADDR"`

	LLMProvider     string        `env:"LLM_PROVIDER" envDefault:"groq"`
	LLMModel        string        `env:"LLM_MODEL"`
	LLMBaseURL      string        `env:"LLM_BASE_URL"`
	GroqAPIKey      string        `env:"GROQ_API_KEY"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	MistralAPIKey   string        `env:"MISTRAL_API_KEY"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	Temperature     float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens       int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	ToolTimeout     time.Duration `env:"TOOL_TIMEOUT" envDefault:"30s"`
	MaxRounds       int           `env:"MAX_TOOL_ROUNDS" envDefault:"5"`

	// Instructions are extra system prompt lines from the YAML file.
	Instructions []string `env:"-"`
}

// Behaviour is the optional YAML file. Environment variables win over it.
type Behaviour struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	Temperature  *float32 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	MaxRounds    int      `yaml:"max_rounds"`
	Instructions []string `yaml:"instructions"`
}

// Load reads .env (outside production), the environment and the behaviour file, then
// validates the result.
func Load() (*Config, error) {
	// In production the environment is provided by the platform.
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("⚠️ WARNING: could not read .env file: %v", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	b, err := readBehaviour(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.apply(b)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readBehaviour(path string) (*Behaviour, error) {
	if path == "" {
		return &Behaviour{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Behaviour{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var b Behaviour
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &b, nil
}

// apply copies behaviour settings whose environment variable is unset.
func (c *Config) apply(b *Behaviour) {
	if b.Provider != "" && !isSet("LLM_PROVIDER") {
		c.LLMProvider = b.Provider
	}
	if b.Model != "" && !isSet("LLM_MODEL") {
		c.LLMModel = b.Model
	}
	if b.Temperature != nil && !isSet("LLM_TEMPERATURE") {
		c.Temperature = *b.Temperature
	}
	if b.MaxTokens > 0 && !isSet("LLM_MAX_TOKENS") {
		c.MaxTokens = b.MaxTokens
	}
	if b.MaxRounds > 0 && !isSet("MAX_TOOL_ROUNDS") {
		c.MaxRounds = b.MaxRounds
	}
	c.Instructions = b.Instructions

	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if c.LLMModel == "" {
		c.LLMModel = DefaultModels[c.LLMProvider]
	}
	if c.Mem0APIKey == "" {
		c.Mem0APIKey = c.Mem0APIKeyAlt
	}
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.NotionAPIKey) == "" {
		errs = append(errs, errors.New("NOTION_API_KEY is required"))
	}
	if strings.TrimSpace(c.Mem0APIKey) == "" {
		errs = append(errs, errors.New("MEM0AI_API_KEY (or MEM0_API_KEY) is required"))
	}
	if _, ok := DefaultModels[c.LLMProvider]; !ok {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported (groq, openai, mistral, anthropic, gemini)", c.LLMProvider))
	} else if strings.TrimSpace(c.ProviderAPIKey()) == "" {
		errs = append(errs, fmt.Errorf("%s is required for provider %s", providerKeyName(c.LLMProvider), c.LLMProvider))
	}
	if c.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("MAX_TOOL_ROUNDS must be positive, got %d", c.MaxRounds))
	}
	if c.MemoryMaxResults <= 0 {
		errs = append(errs, fmt.Errorf("MEMORY_MAX_RESULTS must be positive, got %d", c.MemoryMaxResults))
	}
	if c.LLMTimeout <= 0 || c.ToolTimeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT and TOOL_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ProviderAPIKey returns the key for the configured provider.
func (c *Config) ProviderAPIKey() string {
	switch c.LLMProvider {
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderMistral:
		return c.MistralAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	}
	return ""
}

func providerKeyName(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
