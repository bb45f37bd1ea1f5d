package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// LLM endpoint. Any OpenAI-compatible API works, including a local
	// Ollama server pointed at its /v1 base URL.
	LLMBaseURL     string `envconfig:"LLM_BASE_URL"`
	LLMAPIKey      string `envconfig:"LLM_API_KEY"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDims  int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	// Cross-encoder reranking service. Empty URL disables reranking and
	// the pipeline falls back to raw similarity ordering.
	RerankURL string `envconfig:"RERANK_URL"`

	// Hard cap on chunks admitted into the generation context,
	// regardless of what the planning tier recommends.
	MaxContextChunks int `envconfig:"MAX_CONTEXT_CHUNKS" default:"8"`

	// Planner strategy: "single" or "iterative".
	PlannerStrategy string `envconfig:"PLANNER_STRATEGY" default:"single"`
	ResearchRounds  int    `envconfig:"RESEARCH_ROUNDS" default:"2"`

	// Optional static API key protecting all endpoints except /health.
	APIKey string `envconfig:"API_KEY"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"veridoc-archive"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("VERIDOC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasRerank() bool {
	return c.RerankURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}
