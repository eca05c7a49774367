package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/pkg/log"
)

const (
	episodicRecallLimit = 10
	semanticRecallLimit = 10
)

// Service wraps the memory store with the three-tier policy: working memory
// is a bounded per-session window, episodic records persist per session,
// semantic records are global.
type Service struct {
	repo   core.MemoryRepository
	window int
}

func NewService(repo core.MemoryRepository, window int) *Service {
	return &Service{
		repo:   repo,
		window: window,
	}
}

// ReadContext gathers all three tiers for a session. Memory is advisory:
// a failing tier is logged and comes back empty rather than failing the
// request.
func (s *Service) ReadContext(ctx context.Context, sessionID string) core.MemoryContext {
	logger := log.FromCtx(ctx)
	var mc core.MemoryContext

	working, err := s.repo.List(ctx, core.MemoryWorking, sessionID, s.window)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read working memory")
	}
	mc.Working = working

	episodic, err := s.repo.List(ctx, core.MemoryEpisodic, sessionID, episodicRecallLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read episodic memory")
	}
	mc.Episodic = episodic

	semantic, err := s.repo.List(ctx, core.MemorySemantic, "", semanticRecallLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read semantic memory")
	}
	mc.Semantic = semantic

	return mc
}

// AppendWorking records one conversation turn and prunes the session window.
func (s *Service) AppendWorking(ctx context.Context, sessionID, role, content string) error {
	if err := s.create(ctx, core.MemoryWorking, sessionID, content, map[string]string{"role": role}); err != nil {
		return err
	}

	dropped, err := s.repo.PruneWorking(ctx, sessionID, s.window)
	if err != nil {
		return fmt.Errorf("failed to prune working memory: %w", err)
	}
	if dropped > 0 {
		log.FromCtx(ctx).Debug().Int("dropped", dropped).Str("session", sessionID).Msg("pruned working memory")
	}
	return nil
}

// WriteEpisodic stores a session-scoped interaction summary.
func (s *Service) WriteEpisodic(ctx context.Context, sessionID, content string, metadata map[string]string) error {
	return s.create(ctx, core.MemoryEpisodic, sessionID, content, metadata)
}

// WriteSemantic stores a session-independent fact.
func (s *Service) WriteSemantic(ctx context.Context, content string, metadata map[string]string) error {
	return s.create(ctx, core.MemorySemantic, "", content, metadata)
}

func (s *Service) create(ctx context.Context, typ core.MemoryType, sessionID, content string, metadata map[string]string) error {
	now := time.Now().UTC()
	rec := core.MemoryRecord{
		ID:        uuid.NewString(),
		Type:      typ,
		SessionID: sessionID,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to write %s memory: %w", typ, err)
	}
	return nil
}
