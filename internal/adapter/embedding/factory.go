package embedding

import (
	"fmt"
	"time"

	"docrag/config"
	"docrag/internal/port"
)

// defaultModels fills an empty model per provider. Dimensions follow the
// model unless the config pins one.
var defaultModels = map[string]string{
	"openai":   "text-embedding-3-small",
	"deepseek": "text-embedding-3-small",
	"jina":     "jina-embeddings-v3",
	"ollama":   "nomic-embed-text",
}

// New creates the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	opts := Options{
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
	}

	switch cfg.Provider {
	case "hash", "":
		return NewHashEmbedder(cfg.Dimension), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "deepseek":
		return NewDeepSeekEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "jina":
		return NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, opts)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
