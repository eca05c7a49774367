package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/internal/service/background"
	"github.com/sandevgo/loanpilot/internal/service/retrieval"
	"github.com/sandevgo/loanpilot/pkg/log"
)

// ingest normalizes the query and moderates it. Harmful input is declined
// outright, never escalated, and nothing downstream runs.
func (p *Pipeline) ingest(ctx context.Context, s core.State) (core.Update, error) {
	normalized := strings.TrimSpace(s.Query)
	if runes := []rune(normalized); len(runes) > maxQueryRunes {
		normalized = string(runes[:maxQueryRunes])
	}

	update := core.Update{NormalizedQuery: &normalized}

	if normalized == "" {
		update.FinalResponse = ptr(outOfScopeMessage)
		update.Outcome = ptr(core.OutcomeDecline)
		return update, nil
	}

	result := p.checker.CheckInput(ctx, normalized)
	update.InputSafety = &result
	if !result.Safe {
		log.FromCtx(ctx).Info().Str("reason", result.Reason).Msg("declining unsafe input")
		update.FinalResponse = ptr(declineInputMessage)
		update.Escalate = ptr(false)
		update.Outcome = ptr(core.OutcomeDecline)
	}
	return update, nil
}

// classifyIntent asks the completion backend for a structured intent. Any
// backend or parse failure degrades to the neutral classification.
func (p *Pipeline) classifyIntent(ctx context.Context, s core.State) (core.Update, error) {
	if s.Terminal() {
		return core.Update{}, nil
	}

	raw, err := p.completer.Complete(ctx, intentSystemPrompt, s.NormalizedQuery, intentMaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			return core.Update{}, ctx.Err()
		}
		log.FromCtx(ctx).Warn().Err(err).Msg("intent classification failed, using neutral intent")
		fallback := core.NeutralIntent()
		return core.Update{Intent: &fallback}, nil
	}

	intent, err := parseIntent(raw)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("intent response unparseable, using neutral intent")
		intent = core.NeutralIntent()
	}
	return core.Update{Intent: &intent}, nil
}

// retrieve runs the gated knowledge-base search. An unavailable index
// degrades to zero results, which drives the out-of-scope path.
func (p *Pipeline) retrieve(ctx context.Context, s core.State) (core.Update, error) {
	if s.Terminal() {
		return core.Update{}, nil
	}

	results, err := p.retriever.Retrieve(ctx, s.NormalizedQuery)
	if err != nil {
		if ctx.Err() != nil {
			return core.Update{}, ctx.Err()
		}
		log.FromCtx(ctx).Warn().Err(err).Msg("retrieval failed, continuing without context")
		results = nil
	}
	return core.Update{Retrieval: &results}, nil
}

// recall reads the three memory tiers for the session.
func (p *Pipeline) recall(ctx context.Context, s core.State) (core.Update, error) {
	if s.Terminal() {
		return core.Update{}, nil
	}

	mc := p.memory.ReadContext(ctx, s.SessionID)
	return core.Update{Memory: &mc}, nil
}

// correlate fans in the parallel outputs into a root-cause narrative and
// fires off a best-effort episodic memory write.
func (p *Pipeline) correlate(ctx context.Context, s core.State) (core.Update, error) {
	if s.Terminal() {
		return core.Update{}, nil
	}

	narrative, err := p.completer.Complete(ctx, correlateSystemPrompt, p.builder.correlateUserPrompt(s), reasonMaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			return core.Update{}, ctx.Err()
		}
		log.FromCtx(ctx).Warn().Err(err).Msg("correlation failed, using local summary")
		narrative = fallbackNarrative(s)
	}
	narrative = strings.TrimSpace(narrative)

	p.writeEpisodic(ctx, s, narrative)
	return core.Update{Reasoning: &narrative}, nil
}

func (p *Pipeline) writeEpisodic(ctx context.Context, s core.State, narrative string) {
	if p.tasks == nil || narrative == "" {
		return
	}

	sessionID := s.SessionID
	metadata := map[string]string{"query": s.NormalizedQuery}
	if s.Intent != nil {
		metadata["intent"] = s.Intent.Intent
	}

	p.tasks.Submit(ctx, background.Task{
		Name: "write_episodic",
		Run: func(tctx context.Context) error {
			return p.memory.WriteEpisodic(tctx, sessionID, narrative, metadata)
		},
	})
}

func fallbackNarrative(s core.State) string {
	var sb strings.Builder
	sb.WriteString("Customer asked: ")
	sb.WriteString(s.NormalizedQuery)
	if s.Intent != nil {
		sb.WriteString(fmt.Sprintf(". Classified as %s with %s urgency.", s.Intent.Intent, s.Intent.Urgency))
	}
	if len(s.Retrieval) > 0 {
		sb.WriteString(fmt.Sprintf(" Found %d related knowledge base entries.", len(s.Retrieval)))
	} else {
		sb.WriteString(" No related knowledge base entries found.")
	}
	return sb.String()
}

// draft generates the answer, but only when retrieval produced grounding
// close enough to the query. The confidence gate is hard: with no grounding
// the completion backend is not called at all.
func (p *Pipeline) draft(ctx context.Context, s core.State) (core.Update, error) {
	if s.Terminal() {
		return core.Update{}, nil
	}

	if len(s.Retrieval) == 0 {
		log.FromCtx(ctx).Debug().Msg("no retrieval results, answering out of scope")
		return core.Update{Draft: ptr(outOfScopeMessage)}, nil
	}
	if best := retrieval.BestDistance(s.Retrieval); best != nil && *best > p.confidenceMaxDistance {
		log.FromCtx(ctx).Debug().Float64("best_distance", *best).Msg("grounding too weak, answering out of scope")
		return core.Update{Draft: ptr(outOfScopeMessage)}, nil
	}

	draft, err := p.completer.Complete(ctx, draftSystemPrompt,
		p.builder.draftUserPrompt(s.NormalizedQuery, s.Reasoning, s.Retrieval), draftMaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			return core.Update{}, ctx.Err()
		}
		log.FromCtx(ctx).Warn().Err(err).Msg("draft generation failed")
		draft = generationFailedMessage
	}
	return core.Update{Draft: ptr(strings.TrimSpace(draft))}, nil
}

// safetyGate is the second checkpoint: moderate the draft, then decide the
// terminal outcome. Unsafe output is declined, never escalated; escalation
// is checked against the original query.
func (p *Pipeline) safetyGate(ctx context.Context, s core.State) (core.Update, error) {
	if s.Terminal() {
		return core.Update{}, nil
	}

	result := p.checker.CheckOutput(ctx, s.Draft)
	update := core.Update{OutputSafety: &result}

	if !p.checker.ConfidentEnough(result) {
		log.FromCtx(ctx).Info().Str("reason", result.Reason).Msg("declining unsafe draft")
		update.FinalResponse = ptr(declineOutputMessage)
		update.Escalate = ptr(false)
		update.Outcome = ptr(core.OutcomeDecline)
		return update, nil
	}

	intent := core.NeutralIntent()
	if s.Intent != nil {
		intent = *s.Intent
	}
	if p.escalator.RequiresHuman(s.Query, intent) {
		update.FinalResponse = ptr(escalationMessage)
		update.Escalate = ptr(true)
		update.Outcome = ptr(core.OutcomeEscalate)
		return update, nil
	}

	if result.NoAnswer {
		update.FinalResponse = ptr(outOfScopeMessage)
		update.Escalate = ptr(false)
		update.Outcome = ptr(core.OutcomeRespond)
		return update, nil
	}

	update.FinalResponse = ptr(s.Draft)
	update.Escalate = ptr(false)
	update.Outcome = ptr(core.OutcomeRespond)
	if s.Draft != outOfScopeMessage && s.Draft != generationFailedMessage {
		update.RecommendedActions = recommendActions(s.Intent)
	}
	return update, nil
}

func ptr[T any](v T) *T { return &v }

