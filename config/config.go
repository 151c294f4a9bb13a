// Package config loads runtime settings from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
)

const (
	ModeStrict     = "strict"
	ModePermissive = "permissive"

	defaultGeminiModel = "gemini-2.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
)

// ErrMissingAPIKey is returned in strict mode when the selected provider has no key.
var ErrMissingAPIKey = errors.New("api key missing for llm provider")

// Config holds everything the front-ends need.
type Config struct {
	LLM     LLMConfig
	Archive ArchiveConfig

	Mode          string        `env:"NOTEGEN_MODE" envDefault:"strict" validate:"oneof=strict permissive"`
	ServerAddr    string        `env:"NOTEGEN_ADDR" envDefault:":8080" validate:"required"`
	SessionTTL    time.Duration `env:"NOTEGEN_SESSION_TTL" envDefault:"2h" validate:"gt=0"`
	MaxSessions   int           `env:"NOTEGEN_MAX_SESSIONS" envDefault:"256" validate:"gt=0"`
	UploadLimit   int64         `env:"NOTEGEN_UPLOAD_LIMIT" envDefault:"1048576" validate:"gt=0"`
	RatePerMinute int           `env:"NOTEGEN_RATE_PER_MIN" envDefault:"15" validate:"gte=0"`
	StubDelay     time.Duration `env:"NOTEGEN_STUB_DELAY" envDefault:"10ms" validate:"gte=0"`
}

// LLMConfig 生成模块使用的模型配置。
type LLMConfig struct {
	Provider     string `env:"LLM_PROVIDER" envDefault:"gemini" validate:"oneof=gemini openai deepseek"`
	Model        string `env:"LLM_MODEL"`
	BaseURL      string `env:"LLM_BASE_URL"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	LegacyAPIKey string `env:"API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
}

// ArchiveConfig enables the S3 archive when Endpoint is set.
type ArchiveConfig struct {
	Endpoint  string `env:"ARCHIVE_S3_ENDPOINT"`
	Region    string `env:"ARCHIVE_S3_REGION"`
	AccessKey string `env:"ARCHIVE_S3_ACCESS_KEY"`
	SecretKey string `env:"ARCHIVE_S3_SECRET_KEY"`
	Bucket    string `env:"ARCHIVE_S3_BUCKET"`
	UseSSL    bool   `env:"ARCHIVE_S3_USE_SSL" envDefault:"true"`
}

var validate = validator.New()

// Load reads the given .env files (missing files are ignored; the default is ".env"),
// parses the environment and validates the result. Variables already set in the
// environment win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.Provider == "deepseek" && cfg.LLM.BaseURL == "" {
		// DeepSeek 走 OpenAI 兼容接口，必须显式给出 base_url。
		return nil, fmt.Errorf("llm provider deepseek requires LLM_BASE_URL (OpenAI-compatible endpoint)")
	}
	if cfg.Strict() && cfg.LLM.APIKey() == "" {
		return nil, fmt.Errorf("%w %s; set it or use NOTEGEN_MODE=permissive", ErrMissingAPIKey, cfg.LLM.Provider)
	}
	return cfg, nil
}

// Strict reports whether a missing API key is fatal.
func (c *Config) Strict() bool { return c.Mode != ModePermissive }

// APIKey returns the key for the selected provider. GEMINI_API_KEY falls back to API_KEY.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case "openai", "deepseek":
		return c.OpenAIAPIKey
	default:
		if c.GeminiAPIKey != "" {
			return c.GeminiAPIKey
		}
		return c.LegacyAPIKey
	}
}

// Settings converts to the generator's client settings.
func (c LLMConfig) Settings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey(),
		BaseURL:  c.BaseURL,
	}
}

// Enabled reports whether an S3 archive is configured.
func (a ArchiveConfig) Enabled() bool { return strings.TrimSpace(a.Endpoint) != "" }

func (a ArchiveConfig) S3() publisher.S3Config {
	return publisher.S3Config{
		Endpoint:  a.Endpoint,
		Region:    a.Region,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		Bucket:    a.Bucket,
		UseSSL:    a.UseSSL,
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return defaultOpenAIModel
	case "deepseek":
		return "deepseek-chat"
	default:
		return defaultGeminiModel
	}
}
