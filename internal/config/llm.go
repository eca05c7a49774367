package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/loanpilot/pkg/log"
)

type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"openai"`
	APIKey   string `env:"LLM_API_KEY"`
	Model    string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	// Base URL for provider "custom" (any OpenAI-compatible endpoint).
	BaseURL string `env:"LLM_BASE_URL"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
