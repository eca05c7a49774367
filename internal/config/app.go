package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/loanpilot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"LOANPILOT_RUNTIME_PATH" envDefault:".loanpilot"`

	// Transport flags
	EnableTelegram bool   `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableHTTP     bool   `env:"ENABLE_HTTP" envDefault:"true"`
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`

	// Ceiling for one end-to-end pipeline run; the run is aborted with an
	// error terminal state when exceeded.
	PipelineTimeout time.Duration `env:"PIPELINE_TIMEOUT" envDefault:"60s"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "loanpilot.db")
}
