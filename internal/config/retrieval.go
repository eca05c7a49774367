package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/pkg/log"
)

type RetrievalConfig struct {
	// Character-based chunking (~200-250 tokens at ~4 chars/token).
	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"800"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"100"`

	// Results per retrieval query.
	K int `env:"RETRIEVAL_K" envDefault:"8"`

	// Recall filter: results with L2 distance above this are discarded
	// before leaving the retrieval component.
	RecallMaxDistance float64 `env:"RECALL_MAX_DISTANCE" envDefault:"1.2"`
	// Confidence gate: the best result must be within this distance for the
	// draft stage to attempt a grounded answer at all.
	ConfidenceMaxDistance float64 `env:"CONFIDENCE_MAX_DISTANCE" envDefault:"1.1"`
}

// NewRetrievalConfig parses and validates; both failures are fatal because
// serving with a bad chunker or threshold ordering silently corrupts
// retrieval behaviour.
func NewRetrievalConfig(ctx context.Context) *RetrievalConfig {
	c := &RetrievalConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse retrieval config")
	}
	if err := c.Validate(); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("invalid retrieval config")
	}
	return c
}

func (c *RetrievalConfig) Validate() error {
	if c.ChunkSize < 100 {
		return core.NewConfigError("CHUNK_SIZE", "must be at least 100")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return core.NewConfigError("CHUNK_OVERLAP", "must be in [0, CHUNK_SIZE)")
	}
	if c.K <= 0 {
		return core.NewConfigError("RETRIEVAL_K", "must be positive")
	}
	if c.RecallMaxDistance < 0 || c.ConfidenceMaxDistance < 0 {
		return core.NewConfigError("RECALL_MAX_DISTANCE", "distances must be non-negative")
	}
	// A confidence gate looser than the recall filter would make the recall
	// filter the effective bottleneck, which is never intended.
	if c.ConfidenceMaxDistance > c.RecallMaxDistance {
		return core.NewConfigError("CONFIDENCE_MAX_DISTANCE", "must not exceed RECALL_MAX_DISTANCE")
	}
	return nil
}
