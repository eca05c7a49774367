package embed

import (
	"context"
	"fmt"

	"github.com/sandevgo/loanpilot/internal/config"
	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/pkg/log"
)

// NewEmbedder creates the configured embedding backend. The choice is made
// once per process; an index built with one backend must be rebuilt from
// scratch before another can be used against it.
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (core.Embedder, error) {
	logger := log.FromCtx(ctx)

	switch cfg.Backend {
	case "openai":
		if cfg.APIKey == "" {
			logger.Warn().Msg("no LLM_API_KEY set, falling back to local embedder")
			return NewLocalEmbedder(cfg.LocalDimension), nil
		}
		logger.Info().Str("model", cfg.Model).Msg("using openai embedding backend")
		return NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "local":
		logger.Info().Int("dimension", cfg.LocalDimension).Msg("using local embedding backend")
		return NewLocalEmbedder(cfg.LocalDimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s", cfg.Backend)
	}
}
