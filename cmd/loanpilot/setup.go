package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/loanpilot/internal/config"
	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/internal/guardrails"
	"github.com/sandevgo/loanpilot/internal/providers/embed"
	"github.com/sandevgo/loanpilot/internal/providers/llm"
	"github.com/sandevgo/loanpilot/internal/rag"
	"github.com/sandevgo/loanpilot/internal/service/background"
	"github.com/sandevgo/loanpilot/internal/service/memory"
	"github.com/sandevgo/loanpilot/internal/service/pipeline"
	"github.com/sandevgo/loanpilot/internal/service/retrieval"
	"github.com/sandevgo/loanpilot/internal/storage/sqlite"
	"github.com/sandevgo/loanpilot/internal/transport/httpapi"
	"github.com/sandevgo/loanpilot/internal/transport/telegram"
	"github.com/sandevgo/loanpilot/pkg/log"
	"github.com/sandevgo/loanpilot/pkg/srv"
)

// coreDeps is everything both the serving path and the offline index
// command need.
type coreDeps struct {
	appCfg       *config.AppConfig
	retrievalCfg *config.RetrievalConfig
	db           *sql.DB
	index        *retrieval.Index
}

func initCore(ctx context.Context) (*coreDeps, error) {
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, err
	}

	appCfg := config.NewAppConfig(ctx)
	retrievalCfg := config.NewRetrievalConfig(ctx)
	embeddingCfg := config.NewEmbeddingConfig(ctx)

	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewEmbedder(ctx, embeddingCfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	chunkRepo, err := sqlite.NewChunkRepo(ctx, db, embedder.Dimension())
	if err != nil {
		db.Close()
		return nil, err
	}

	index := retrieval.NewIndex(embedder, chunkRepo, rag.ChunkerConfig{
		ChunkSize: retrievalCfg.ChunkSize,
		Overlap:   retrievalCfg.ChunkOverlap,
	})

	return &coreDeps{
		appCfg:       appCfg,
		retrievalCfg: retrievalCfg,
		db:           db,
		index:        index,
	}, nil
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	deps, err := initCore(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize core")
	}
	services = append(services, srv.NewCleanup(deps.db.Close))

	llmCfg := config.NewLLMConfig(ctx)
	guardCfg := config.NewGuardrailsConfig(ctx)

	completer, err := llm.NewCompleter(ctx, llmCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// Moderation shares the LLM key; without one the checker fails open.
	var moderator core.Moderator
	if llmCfg.APIKey != "" {
		moderator = llm.NewModerationClient(llmCfg.APIKey)
	} else {
		logger.Warn().Msg("no LLM_API_KEY set, content moderation disabled")
	}

	checker, err := guardrails.NewChecker(moderator, guardCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize safety checker")
	}
	escalator := guardrails.NewEscalator(guardCfg)

	memSvc := memory.NewService(sqlite.NewMemoryRepo(deps.db), guardCfg.WorkingMemoryWindow)

	dispatcher := background.NewDispatcher()
	services = append(services, dispatcher)

	retriever := retrieval.NewRetriever(deps.index, deps.retrievalCfg.K, deps.retrievalCfg.RecallMaxDistance).
		WithQueryExpansion(completer, escalator.InDomain)

	p := pipeline.New(completer, retriever, checker, escalator, memSvc, dispatcher, pipeline.Config{
		ConfidenceMaxDistance: deps.retrievalCfg.ConfidenceMaxDistance,
		Timeout:               deps.appCfg.PipelineTimeout,
	})

	transports, err := initTransports(ctx, deps.appCfg, p)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	return services
}

func initTransports(ctx context.Context, cfg *config.AppConfig, p *pipeline.Pipeline) ([]srv.Service, error) {
	var services []srv.Service

	if cfg.EnableHTTP {
		services = append(services, httpapi.NewServer(cfg.HTTPAddr, p))
	}

	if cfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, p)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
