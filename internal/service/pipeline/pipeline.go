package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/internal/service/background"
	"github.com/sandevgo/loanpilot/pkg/log"
)

// Collaborator interfaces, narrowed to what the pipeline actually calls.

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]core.RetrievalResult, error)
}

type SafetyChecker interface {
	CheckInput(ctx context.Context, text string) core.SafetyResult
	CheckOutput(ctx context.Context, text string) core.SafetyResult
	ConfidentEnough(result core.SafetyResult) bool
}

type EscalationPolicy interface {
	RequiresHuman(query string, intent core.IntentResult) bool
}

type MemoryService interface {
	ReadContext(ctx context.Context, sessionID string) core.MemoryContext
	AppendWorking(ctx context.Context, sessionID, role, content string) error
	WriteEpisodic(ctx context.Context, sessionID, content string, metadata map[string]string) error
}

type TaskQueue interface {
	Submit(ctx context.Context, task background.Task) bool
}

// StageEvent is emitted after each stage's update has been merged. State is
// a snapshot, safe to hold.
type StageEvent struct {
	Stage string
	State core.State
}

type OnStage func(StageEvent)

type Config struct {
	ConfidenceMaxDistance float64
	Timeout               time.Duration
}

// Pipeline is the stage graph: ingest, then intent/retrieve/recall in
// parallel, then correlate, draft and the safety gate. Stages get a frozen
// snapshot of the state and return partial updates; only Run merges them,
// so the parallel trio never races.
type Pipeline struct {
	completer core.Completer
	retriever Retriever
	checker   SafetyChecker
	escalator EscalationPolicy
	memory    MemoryService
	tasks     TaskQueue
	builder   *promptBuilder

	confidenceMaxDistance float64
	timeout               time.Duration
}

func New(
	completer core.Completer,
	retriever Retriever,
	checker SafetyChecker,
	escalator EscalationPolicy,
	memory MemoryService,
	tasks TaskQueue,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		completer:             completer,
		retriever:             retriever,
		checker:               checker,
		escalator:             escalator,
		memory:                memory,
		tasks:                 tasks,
		builder:               newPromptBuilder(),
		confidenceMaxDistance: cfg.ConfidenceMaxDistance,
		timeout:               cfg.Timeout,
	}
}

// Run executes the pipeline for one request and always returns a state with
// a final response, unless a stage fails unexpectedly or the deadline is
// exceeded, in which case the error surfaces to the caller.
func (p *Pipeline) Run(ctx context.Context, query, sessionID string, onStage OnStage) (core.State, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logger := log.FromCtx(ctx).With().Str("session", sessionID).Logger()
	ctx = logger.WithContext(ctx)

	state := core.State{Query: query, SessionID: sessionID}
	emit := func(stage string) {
		if onStage != nil {
			onStage(StageEvent{Stage: stage, State: state})
		}
	}

	update, err := p.ingest(ctx, state)
	if err != nil {
		return state, fmt.Errorf("ingest stage: %w", err)
	}
	state.Apply(update)
	emit("ingest")

	if !state.Terminal() {
		if err := p.runParallel(ctx, &state, emit); err != nil {
			return state, fmt.Errorf("pipeline execution: %w", err)
		}

		for _, stage := range []struct {
			name string
			fn   func(context.Context, core.State) (core.Update, error)
		}{
			{"correlate", p.correlate},
			{"draft", p.draft},
			{"safety_gate", p.safetyGate},
		} {
			update, err := stage.fn(ctx, state)
			if err != nil {
				return state, fmt.Errorf("%s stage: %w", stage.name, err)
			}
			state.Apply(update)
			emit(stage.name)
		}
	}

	if state.Outcome == "" {
		state.Outcome = core.OutcomeDecline
	}
	p.recordTurn(ctx, state)
	emit(string(state.Outcome))

	logger.Info().
		Str("outcome", string(state.Outcome)).
		Bool("escalate", state.Escalate).
		Msg("pipeline finished")
	return state, nil
}

// runParallel fans out the three independent stages over a frozen snapshot
// and merges their disjoint updates in a fixed order once all have joined.
func (p *Pipeline) runParallel(ctx context.Context, state *core.State, emit func(string)) error {
	snapshot := *state

	var intentU, retrieveU, recallU core.Update
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		u, err := p.classifyIntent(gctx, snapshot)
		intentU = u
		return err
	})
	g.Go(func() error {
		u, err := p.retrieve(gctx, snapshot)
		retrieveU = u
		return err
	})
	g.Go(func() error {
		u, err := p.recall(gctx, snapshot)
		recallU = u
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	state.Apply(intentU)
	emit("intent")
	state.Apply(retrieveU)
	emit("retrieve")
	state.Apply(recallU)
	emit("recall")
	return nil
}

// recordTurn appends the exchange to working memory, detached from the
// request deadline. Memory is advisory, failures only log.
func (p *Pipeline) recordTurn(ctx context.Context, state core.State) {
	logger := log.FromCtx(ctx)
	mctx := context.WithoutCancel(ctx)

	if err := p.memory.AppendWorking(mctx, state.SessionID, core.RoleUser, state.Query); err != nil {
		logger.Warn().Err(err).Msg("failed to record user turn")
	}
	if state.FinalResponse != "" {
		if err := p.memory.AppendWorking(mctx, state.SessionID, core.RoleAssistant, state.FinalResponse); err != nil {
			logger.Warn().Err(err).Msg("failed to record assistant turn")
		}
	}
}
