package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the FabSight server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Chroma   ChromaConfig
	AI       AIConfig
	Workflow WorkflowConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// ChromaConfig points at the vector store holding generated reports.
type ChromaConfig struct {
	BaseURL    string
	Collection string
	Timeout    time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	OpenAI           OpenAIConfig
}

type OllamaConfig struct {
	BaseURL    string
	Model      string
	EmbedModel string
}

type OpenAIConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

// WorkflowConfig holds the cache TTLs for the analysis pipeline.
// SessionTTL bounds how long an operator has to pick a root cause
// between Phase 1 and Phase 2.
type WorkflowConfig struct {
	AnalysisCacheTTL time.Duration
	QACacheTTL       time.Duration
	SessionTTL       time.Duration
}

var validProviders = map[string]bool{
	"ollama": true,
	"openai": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("FABSIGHT_PORT", 8080),
			Env:  envString("FABSIGHT_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Chroma: ChromaConfig{
			BaseURL:    os.Getenv("CHROMA_BASE_URL"),
			Collection: envString("CHROMA_COLLECTION", "kpi_analysis_reports"),
			Timeout:    envDuration("CHROMA_TIMEOUT", 30*time.Second),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			Ollama: OllamaConfig{
				BaseURL:    envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:      envString("OLLAMA_MODEL", "llama3"),
				EmbedModel: envString("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			},
			OpenAI: OpenAIConfig{
				APIKey:     os.Getenv("OPENAI_API_KEY"),
				Model:      envString("OPENAI_MODEL", "gpt-4o"),
				EmbedModel: envString("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
			},
		},
		Workflow: WorkflowConfig{
			AnalysisCacheTTL: envDuration("ANALYSIS_CACHE_TTL", time.Hour),
			QACacheTTL:       envDuration("QA_CACHE_TTL", 30*time.Minute),
			SessionTTL:       envDuration("SESSION_TTL", 30*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Chroma.BaseURL == "" {
		return fmt.Errorf("CHROMA_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Chroma.BaseURL, "http://") && !strings.HasPrefix(c.Chroma.BaseURL, "https://") {
		return fmt.Errorf("CHROMA_BASE_URL must start with http:// or https://, got %q", c.Chroma.BaseURL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, openai; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
