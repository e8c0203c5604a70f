// Package config loads process settings from a YAML file with environment
// variable overlays. The resulting value is built once in main and passed
// down; nothing re-reads configuration at runtime.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures one OpenAI-compatible or Ollama endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	KeyEnv   string `yaml:"key_env"`
	Model    string `yaml:"model"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Type       string `yaml:"type"` // "chromem" or "postgres"
	PersistDir string `yaml:"persist_dir"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn"`
	// Dimension is the pgvector column width; it must match the
	// configured embedding model's output size.
	Dimension int  `yaml:"dimension"`
	Debug     bool `yaml:"debug"`
}

// AuthConfig selects the authentication provider and its settings.
type AuthConfig struct {
	Provider         string `yaml:"provider"` // "none", "active_directory", "google"
	ADServerURI      string `yaml:"ad_server_uri"`
	ADUserDNTemplate string `yaml:"ad_user_dn_template"`
	GoogleClientID   string `yaml:"google_client_id"`
}

// RAGConfig holds the retrieval pipeline knobs.
type RAGConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size"`
	TopK         int `yaml:"top_k"`
}

type Config struct {
	AppName   string      `yaml:"app_name"`
	Addr      string      `yaml:"addr"`
	Auth      AuthConfig  `yaml:"auth"`
	Embedding LLMConfig   `yaml:"embedding"`
	Inference LLMConfig   `yaml:"inference"`
	Store     StoreConfig `yaml:"store"`
	RAG       RAGConfig   `yaml:"rag"`
}

// Load reads the config file at path. A missing file yields defaults so
// the server can start from environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = "Document Aware Chatbot"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.Auth.Provider == "" {
		cfg.Auth.Provider = "none"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.KeyEnv == "" {
		cfg.Embedding.KeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Inference.Provider == "" {
		cfg.Inference.Provider = "openai"
	}
	if cfg.Inference.Model == "" {
		cfg.Inference.Model = "gpt-4o-mini"
	}
	if cfg.Inference.KeyEnv == "" {
		cfg.Inference.KeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "chromem"
	}
	if cfg.Store.PersistDir == "" {
		cfg.Store.PersistDir = "./storage/chromem"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "documents"
	}
	if cfg.Store.Dimension == 0 {
		// text-embedding-3-small output size, matching the embedding
		// model default.
		cfg.Store.Dimension = 1536
	}
	if cfg.RAG.MaxChunkSize == 0 {
		cfg.RAG.MaxChunkSize = 2000
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
}

// applyEnv overlays secrets and deploy-specific values from the
// environment on top of the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if cfg.Embedding.Key == "" && cfg.Embedding.KeyEnv != "" {
		cfg.Embedding.Key = os.Getenv(cfg.Embedding.KeyEnv)
	}
	if cfg.Inference.Key == "" && cfg.Inference.KeyEnv != "" {
		cfg.Inference.Key = os.Getenv(cfg.Inference.KeyEnv)
	}
	if v := os.Getenv("EMBEDDINGS_PATH"); v != "" {
		cfg.Store.PersistDir = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
}

func validate(cfg *Config) error {
	// The chunker cannot make forward progress below 2.
	if cfg.RAG.MaxChunkSize < 2 {
		return fmt.Errorf("rag.max_chunk_size must be at least 2, got %d", cfg.RAG.MaxChunkSize)
	}
	if cfg.RAG.TopK < 1 {
		return fmt.Errorf("rag.top_k must be at least 1, got %d", cfg.RAG.TopK)
	}
	switch cfg.Store.Type {
	case "chromem", "postgres":
	default:
		return fmt.Errorf("store.type must be chromem or postgres, got %q", cfg.Store.Type)
	}
	if cfg.Store.Dimension < 1 {
		return fmt.Errorf("store.dimension must be at least 1, got %d", cfg.Store.Dimension)
	}
	switch cfg.Auth.Provider {
	case "none", "active_directory", "google":
	default:
		return fmt.Errorf("auth.provider must be none, active_directory or google, got %q", cfg.Auth.Provider)
	}
	return nil
}
