package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Providers  ProvidersConfig  `mapstructure:"providers"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Retriever  RetrieverConfig  `mapstructure:"retriever"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ProvidersConfig configures the market-data providers. Order lists the
// failover sequence; the first entry is the primary.
type ProvidersConfig struct {
	Order        []string           `mapstructure:"order"`
	Finnhub      FinnhubConfig      `mapstructure:"finnhub"`
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	Timeout      time.Duration      `mapstructure:"timeout"`
}

type FinnhubConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type AlphaVantageConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Claude   ClaudeConfig  `mapstructure:"claude"`
	OpenAI   OpenAIConfig  `mapstructure:"openai"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// EmbeddingsConfig configures the embedding model. The model name is
// persisted alongside every vector so a stale index can be rejected.
type EmbeddingsConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Vectors   VectorsConfig   `mapstructure:"vectors"`
	Documents DocumentsConfig `mapstructure:"documents"`
}

type SessionsConfig struct {
	Type string `mapstructure:"type"` // "memory" or "postgres"
	DSN  string `mapstructure:"dsn"`
}

type VectorsConfig struct {
	Type string `mapstructure:"type"` // "memory" or "postgres"
	DSN  string `mapstructure:"dsn"`
}

// DocumentsConfig configures the bulk-ingestion source.
type DocumentsConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type MemoryConfig struct {
	TokenBudget  int `mapstructure:"token_budget"`
	RetainTail   int `mapstructure:"retain_tail"`
	MaxMessages  int `mapstructure:"max_messages"`
	SummarizeMax int `mapstructure:"summarize_max"`
}

type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
}

type RetrieverConfig struct {
	TopK int `mapstructure:"top_k"`
}

// MetricsConfig configures the Prometheus scrape endpoint served
// alongside the chat session.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Order:   []string{"finnhub", "alphavantage"},
			Timeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "claude",
			Timeout:  60 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			Timeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			Sessions:  SessionsConfig{Type: "memory"},
			Vectors:   VectorsConfig{Type: "memory"},
			Documents: DocumentsConfig{Type: "localfs", Path: "./documents"},
		},
		Memory: MemoryConfig{
			TokenBudget:  1000,
			RetainTail:   10,
			MaxMessages:  100,
			SummarizeMax: 20,
		},
		Agent: AgentConfig{
			MaxIterations: 5,
			ToolTimeout:   15 * time.Second,
		},
		Retriever: RetrieverConfig{
			TopK: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Providers.Order) == 0 {
		return core.Wrapf(core.ErrConfigMissing, "providers.order must list at least one provider")
	}
	for _, name := range c.Providers.Order {
		switch name {
		case "finnhub":
			if c.Providers.Finnhub.APIKey == "" {
				return core.Wrapf(core.ErrConfigMissing, "finnhub api_key required when listed in providers.order")
			}
		case "alphavantage":
			if c.Providers.AlphaVantage.APIKey == "" {
				return core.Wrapf(core.ErrConfigMissing, "alphavantage api_key required when listed in providers.order")
			}
		default:
			return core.Wrapf(core.ErrConfigInvalid, "unknown provider %q in providers.order", name)
		}
	}

	switch c.LLM.Provider {
	case "claude":
		if c.LLM.Claude.APIKey == "" {
			return core.Wrapf(core.ErrConfigMissing, "claude api_key required when provider is claude")
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return core.Wrapf(core.ErrConfigMissing, "openai api_key required when provider is openai")
		}
	default:
		return core.Wrapf(core.ErrConfigInvalid, "unknown llm provider %q", c.LLM.Provider)
	}

	if c.Providers.Timeout <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "providers timeout must be positive, got %v", c.Providers.Timeout)
	}
	if c.LLM.Timeout <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "llm timeout must be positive, got %v", c.LLM.Timeout)
	}
	if c.Embeddings.Timeout <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "embeddings timeout must be positive, got %v", c.Embeddings.Timeout)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return core.Wrapf(core.ErrConfigMissing, "metrics addr required when metrics are enabled")
	}

	if c.Memory.TokenBudget <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "memory token_budget must be positive, got %d", c.Memory.TokenBudget)
	}
	if c.Memory.RetainTail < 0 {
		return core.Wrapf(core.ErrConfigInvalid, "memory retain_tail cannot be negative, got %d", c.Memory.RetainTail)
	}
	if c.Agent.MaxIterations <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "agent max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Retriever.TopK < 0 {
		return core.Wrapf(core.ErrConfigInvalid, "retriever top_k cannot be negative, got %d", c.Retriever.TopK)
	}

	switch c.Storage.Sessions.Type {
	case "memory":
	case "postgres":
		if c.Storage.Sessions.DSN == "" {
			return core.Wrapf(core.ErrConfigMissing, "sessions dsn required for postgres store")
		}
	default:
		return core.Wrapf(core.ErrConfigInvalid, "unknown sessions store type %q", c.Storage.Sessions.Type)
	}
	switch c.Storage.Vectors.Type {
	case "memory":
	case "postgres":
		if c.Storage.Vectors.DSN == "" {
			return core.Wrapf(core.ErrConfigMissing, "vectors dsn required for postgres store")
		}
	default:
		return core.Wrapf(core.ErrConfigInvalid, "unknown vectors store type %q", c.Storage.Vectors.Type)
	}

	return nil
}
