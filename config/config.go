package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the document store.
type Config struct {
	Chunk     ChunkConfig     `yaml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Store     StoreConfig     `yaml:"store"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChunkConfig controls how extracted text is split. Sizes are in characters.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`    // "hash", "openai", "ollama", "jina", "deepseek"
	Model       string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv   string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL     string `yaml:"base_url"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Metric             string `yaml:"metric"` // "cosine" or "dot"
	Workers            int    `yaml:"workers"`
	RebuildTimeoutSecs int    `yaml:"rebuild_timeout_secs"`
}

// StoreConfig holds corpus storage configuration.
type StoreConfig struct {
	Backend  string   `yaml:"backend"` // "bolt" or "memory"
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// ServerConfig holds HTTP adapter configuration.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			Size:    1000,
			Overlap: 100,
		},
		Embedding: EmbeddingConfig{
			Provider:    "hash",
			APIKeyEnv:   "OPENAI_API_KEY",
			BatchSize:   64,
			TimeoutSecs: 60,
		},
		Index: IndexConfig{
			Metric:             "cosine",
			Workers:            4,
			RebuildTimeoutSecs: 300,
		},
		Store: StoreConfig{
			Backend:  "bolt",
			Dir:      ".docrag",
			Includes: []string{"**/*.txt", "**/*.text", "**/*.md", "**/*.markdown"},
			Excludes: []string{"**/.git/**", "**/.docrag/**", "**/node_modules/**"},
		},
		Retrieve: RetrieveConfig{
			TopK: 3,
		},
		Server: ServerConfig{
			Addr:        ":5000",
			BodyLimitMB: 32,
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
			cfg.applyEnv()
			cfg.normalize()
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalize()

	return cfg, cfg.Validate()
}

// LoadFromDir loads configuration from a directory (looks for rag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try rag.yaml in the directory
	path := filepath.Join(dir, "rag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .docrag/config.yaml
	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// applyEnv lets environment variables (typically from .env) override the
// embedding provider and the listen address.
func (c *Config) applyEnv() {
	if v := os.Getenv("DOCRAG_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("DOCRAG_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("DOCRAG_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// normalize canonicalises values that are matched case-sensitively downstream.
func (c *Config) normalize() {
	c.Index.Metric = strings.ToLower(strings.TrimSpace(c.Index.Metric))
}

// Validate reports configuration that cannot produce a working index.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunk.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk.size must be positive, got %d", c.Chunk.Size))
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		errs = append(errs, fmt.Errorf("chunk.overlap must be in [0, %d), got %d", c.Chunk.Size, c.Chunk.Overlap))
	}
	switch c.Index.Metric {
	case "cosine", "dot":
	default:
		errs = append(errs, fmt.Errorf("index.metric must be cosine or dot, got %q", c.Index.Metric))
	}
	switch c.Store.Backend {
	case "bolt", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.backend must be bolt or memory, got %q", c.Store.Backend))
	}
	return errors.Join(errs...)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDir returns the directory holding the index database, relative to root
// unless configured as an absolute path.
func (c *Config) DataDir(root string) string {
	if filepath.IsAbs(c.Store.Dir) {
		return c.Store.Dir
	}
	return filepath.Join(root, c.Store.Dir)
}

// IndexDBPath returns the path to the index database.
func (c *Config) IndexDBPath(root string) string {
	return filepath.Join(c.DataDir(root), "index.db")
}

// EnsureDataDir ensures the data directory exists.
func (c *Config) EnsureDataDir(root string) error {
	return os.MkdirAll(c.DataDir(root), 0755)
}
