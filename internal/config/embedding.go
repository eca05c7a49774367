package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/loanpilot/pkg/log"
)

type EmbeddingConfig struct {
	// openai (remote API) or local (deterministic fallback, no network).
	// Chosen once per index lifetime; switching backends requires a full
	// re-index because embedding spaces are not comparable.
	Backend string `env:"EMBEDDING_BACKEND" envDefault:"openai"`
	Model   string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	BaseURL string `env:"EMBEDDING_BASE_URL" envDefault:"https://api.openai.com"`
	APIKey  string `env:"LLM_API_KEY"`
	// Dimension of the local fallback embedder.
	LocalDimension int `env:"EMBEDDING_LOCAL_DIMENSION" envDefault:"256"`
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	c := &EmbeddingConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse embedding config")
	}
	return c
}
