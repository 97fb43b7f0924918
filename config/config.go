package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge base tool.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig holds fragment splitting configuration.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // fragment length in characters
	Overlap int `yaml:"overlap"` // characters shared between adjacent fragments
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`       // e.g. "text-embedding-004"
	APIKeyEnv string `yaml:"api_key_env"` // environment variable holding the API key
	Dimension int    `yaml:"dimension"`
}

// GenerationConfig holds generation provider configuration.
type GenerationConfig struct {
	Model       string `yaml:"model"`        // chat model; empty means pick from the provider's list
	RouterModel string `yaml:"router_model"` // fast model used for query routing
	APIKeyEnv   string `yaml:"api_key_env"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	SimilarityFloor float64 `yaml:"similarity_floor"` // minimum top-match similarity before answering
	HistoryWindow   int     `yaml:"history_window"`   // trailing turns included in generation prompts
	RouterWindow    int     `yaml:"router_window"`    // trailing turns shown to the query router
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	EmbedDelayMS int      `yaml:"embed_delay_ms"` // pause between embedding calls after the first
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Size:    800,
			Overlap: 100,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-004",
			APIKeyEnv: "GEMINI_API_KEY",
			Dimension: 768,
		},
		Generation: GenerationConfig{
			Model:       "",
			RouterModel: "gemini-1.5-flash",
			APIKeyEnv:   "GEMINI_API_KEY",
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			SimilarityFloor: 0.25,
			HistoryWindow:   6,
			RouterWindow:    4,
		},
		Ingest: IngestConfig{
			Includes:     []string{"**/*.pdf", "**/*.docx", "**/*.txt", "**/*.md"},
			Excludes:     []string{"**/.git/**", "**/node_modules/**"},
			EmbedDelayMS: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for kb.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "kb.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".kb", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StoreDBPath returns the path to the knowledge base database.
func StoreDBPath(dir string) string {
	return filepath.Join(dir, ".kb", "kb.db")
}

// EnsureDataDir ensures the .kb directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".kb"), 0755)
}
