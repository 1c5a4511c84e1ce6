// Package config loads process configuration from an optional YAML file
// and environment variables. Environment variables win.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Generation model
	LLMProvider Provider `yaml:"llm_provider"`
	LLMModel    string   `yaml:"llm_model"`

	// Embeddings
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Provider credentials/endpoints
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	VoyageAPIKey    string `yaml:"voyage_api_key"`
	BedrockRegion   string `yaml:"bedrock_region"`

	// Chunking
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Retrieval and conversation
	MaxResults    int `yaml:"max_results"`
	MaxHistory    int `yaml:"max_history"`
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// Documents folder for startup ingestion
	DocsPath string `yaml:"docs_path"`

	// HTTP server
	ServerPort string `yaml:"server_port"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration: defaults, then the YAML file named by
// COURSECHAT_CONFIG (or ./coursechat.yaml when present), then
// environment variables.
func Load() (Config, error) {
	cfg := defaults()

	path := os.Getenv("COURSECHAT_CONFIG")
	if path == "" {
		if _, err := os.Stat("coursechat.yaml"); err == nil {
			path = "coursechat.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "coursechat",
		SurrealDBDatabase:  "corpus",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		LLMProvider: ProviderAnthropic,
		LLMModel:    "claude-sonnet-4-20250514",

		EmbedProvider:  ProviderOllama,
		EmbedModel:     "all-minilm:l6-v2",
		EmbedDimension: 384,

		OllamaHost: "http://localhost:11434",

		ChunkSize:    800,
		ChunkOverlap: 100,

		MaxResults:    5,
		MaxHistory:    2,
		MaxToolRounds: 1,

		DocsPath: "docs",

		ServerPort: "8080",

		LogFile:  "/tmp/coursechat.log",
		LogLevel: slog.LevelInfo,
	}
}

func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr(&cfg.SurrealDBURL, "SURREALDB_URL")
	setStr(&cfg.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	setStr(&cfg.SurrealDBDatabase, "SURREALDB_DATABASE")
	setStr(&cfg.SurrealDBUser, "SURREALDB_USER")
	setStr(&cfg.SurrealDBPass, "SURREALDB_PASS")
	setStr(&cfg.SurrealDBAuthLevel, "SURREALDB_AUTH_LEVEL")

	if v := os.Getenv("COURSECHAT_LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = Provider(v)
	}
	setStr(&cfg.LLMModel, "COURSECHAT_LLM_MODEL")
	if v := os.Getenv("COURSECHAT_EMBED_PROVIDER"); v != "" {
		cfg.EmbedProvider = Provider(v)
	}
	setStr(&cfg.EmbedModel, "COURSECHAT_EMBED_MODEL")
	setInt(&cfg.EmbedDimension, "COURSECHAT_EMBED_DIMENSION")

	setStr(&cfg.OllamaHost, "OLLAMA_HOST")
	setStr(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setStr(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.VoyageAPIKey, "VOYAGE_API_KEY")
	setStr(&cfg.BedrockRegion, "AWS_REGION")

	setInt(&cfg.ChunkSize, "COURSECHAT_CHUNK_SIZE")
	setInt(&cfg.ChunkOverlap, "COURSECHAT_CHUNK_OVERLAP")
	setInt(&cfg.MaxResults, "COURSECHAT_MAX_RESULTS")
	setInt(&cfg.MaxHistory, "COURSECHAT_MAX_HISTORY")
	setInt(&cfg.MaxToolRounds, "COURSECHAT_MAX_TOOL_ROUNDS")

	setStr(&cfg.DocsPath, "COURSECHAT_DOCS_PATH")
	setStr(&cfg.ServerPort, "COURSECHAT_SERVER_PORT")

	setStr(&cfg.LogFile, "COURSECHAT_LOG_FILE")
	if v := os.Getenv("COURSECHAT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
