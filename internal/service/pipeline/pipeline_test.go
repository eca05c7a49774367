package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/internal/service/background"
)

type fakeCompleter struct {
	mu      sync.Mutex
	replies map[string]string // keyed by system prompt
	calls   []string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, system)
	if reply, ok := f.replies[system]; ok {
		return reply, nil
	}
	return "generic reply", nil
}

func (f *fakeCompleter) called(system string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == system {
			n++
		}
	}
	return n
}

type fakeRetriever struct {
	results []core.RetrievalResult
	delay   time.Duration
	calls   int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]core.RetrievalResult, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.results, nil
}

type fakeChecker struct {
	inputSafe    bool
	outputSafe   bool
	outputNoAns  bool
	inputCalls   int
	outputCalls  int
	confidence   float64
}

func (f *fakeChecker) CheckInput(ctx context.Context, text string) core.SafetyResult {
	f.inputCalls++
	return core.SafetyResult{Safe: f.inputSafe, Confidence: f.confidence}
}

func (f *fakeChecker) CheckOutput(ctx context.Context, text string) core.SafetyResult {
	f.outputCalls++
	return core.SafetyResult{Safe: f.outputSafe, Confidence: f.confidence, NoAnswer: f.outputNoAns}
}

func (f *fakeChecker) ConfidentEnough(r core.SafetyResult) bool {
	return r.Safe && r.Confidence >= 0.7
}

type fakeEscalator struct{ verdict bool }

func (f *fakeEscalator) RequiresHuman(query string, intent core.IntentResult) bool { return f.verdict }

type fakeMemory struct {
	mu       sync.Mutex
	delay    time.Duration
	reads    int
	working  []string
	episodic []string
}

func (f *fakeMemory) ReadContext(ctx context.Context, sessionID string) core.MemoryContext {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return core.MemoryContext{
		Working: []core.MemoryRecord{{Content: "earlier turn", Metadata: map[string]string{"role": "user"}}},
	}
}

func (f *fakeMemory) AppendWorking(ctx context.Context, sessionID, role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.working = append(f.working, role+": "+content)
	return nil
}

func (f *fakeMemory) WriteEpisodic(ctx context.Context, sessionID, content string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodic = append(f.episodic, content)
	return nil
}

// syncQueue runs submitted tasks inline so tests see their effects.
type syncQueue struct{ submitted int }

func (q *syncQueue) Submit(ctx context.Context, task background.Task) bool {
	q.submitted++
	_ = task.Run(ctx)
	return true
}

func dist(d float64) *float64 { return &d }

type deps struct {
	completer *fakeCompleter
	retriever *fakeRetriever
	checker   *fakeChecker
	escalator *fakeEscalator
	memory    *fakeMemory
	queue     *syncQueue
}

func newDeps() *deps {
	return &deps{
		completer: &fakeCompleter{replies: map[string]string{
			intentSystemPrompt:    `{"intent": "loan_status", "urgency": "low", "sla_risk": "low"}`,
			correlateSystemPrompt: "Customer wants to know their loan status.",
			draftSystemPrompt:     "Your loan is being processed (source: faq.md).",
		}},
		retriever: &fakeRetriever{results: []core.RetrievalResult{
			{Text: "loans are processed in 3 days", SourceFile: "faq.md", Distance: dist(0.4)},
		}},
		checker:   &fakeChecker{inputSafe: true, outputSafe: true, confidence: 0.95},
		escalator: &fakeEscalator{},
		memory:    &fakeMemory{},
		queue:     &syncQueue{},
	}
}

func (d *deps) build() *Pipeline {
	return New(d.completer, d.retriever, d.checker, d.escalator, d.memory, d.queue, Config{
		ConfidenceMaxDistance: 1.1,
		Timeout:               5 * time.Second,
	})
}

func TestRunHappyPath(t *testing.T) {
	d := newDeps()
	p := d.build()

	state, err := p.Run(context.Background(), "what is my loan status", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeRespond, state.Outcome)
	assert.False(t, state.Escalate)
	assert.Equal(t, "Your loan is being processed (source: faq.md).", state.FinalResponse)
	assert.Equal(t, "loan_status", state.Intent.Intent)
	require.Len(t, state.RecommendedActions, 1)
	assert.Equal(t, "check_status", state.RecommendedActions[0].Action)

	// Both turns recorded, episodic narrative written off the request path.
	assert.Len(t, d.memory.working, 2)
	assert.Equal(t, 1, d.queue.submitted)
	assert.Len(t, d.memory.episodic, 1)
}

func TestRunHarmfulInputDeclinesWithoutDownstream(t *testing.T) {
	d := newDeps()
	d.checker.inputSafe = false
	p := d.build()

	state, err := p.Run(context.Background(), "harmful text", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeDecline, state.Outcome)
	assert.False(t, state.Escalate)
	assert.Equal(t, declineInputMessage, state.FinalResponse)

	// Nothing downstream of ingest may run.
	assert.Empty(t, d.completer.calls)
	assert.Zero(t, d.retriever.calls)
	assert.Zero(t, d.memory.reads)
	assert.Zero(t, d.checker.outputCalls)
}

func TestRunZeroResultsSkipsGeneration(t *testing.T) {
	d := newDeps()
	d.retriever.results = nil
	p := d.build()

	state, err := p.Run(context.Background(), "how do I bake bread", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeRespond, state.Outcome)
	assert.Equal(t, outOfScopeMessage, state.FinalResponse)
	assert.Empty(t, state.RecommendedActions)
	assert.Zero(t, d.completer.called(draftSystemPrompt))
}

func TestRunWeakGroundingSkipsGeneration(t *testing.T) {
	d := newDeps()
	d.retriever.results = []core.RetrievalResult{
		{Text: "barely related", SourceFile: "faq.md", Distance: dist(1.15)},
	}
	p := d.build()

	state, err := p.Run(context.Background(), "obscure question", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, outOfScopeMessage, state.FinalResponse)
	assert.Zero(t, d.completer.called(draftSystemPrompt))
}

func TestRunEscalation(t *testing.T) {
	d := newDeps()
	d.escalator.verdict = true
	p := d.build()

	state, err := p.Run(context.Background(), "my loan disbursement is stuck, get me an agent", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeEscalate, state.Outcome)
	assert.True(t, state.Escalate)
	assert.Equal(t, escalationMessage, state.FinalResponse)
}

func TestRunUnsafeDraftDeclinesNotEscalates(t *testing.T) {
	d := newDeps()
	d.checker.outputSafe = false
	d.escalator.verdict = true // escalation must not win over an unsafe draft
	p := d.build()

	state, err := p.Run(context.Background(), "my loan is stuck", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeDecline, state.Outcome)
	assert.False(t, state.Escalate)
	assert.Equal(t, declineOutputMessage, state.FinalResponse)
}

func TestRunNoAnswerDraftBecomesOutOfScope(t *testing.T) {
	d := newDeps()
	d.completer.replies[draftSystemPrompt] = "I don't know."
	d.checker.outputNoAns = true
	p := d.build()

	state, err := p.Run(context.Background(), "unanswerable loan question", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeRespond, state.Outcome)
	assert.Equal(t, outOfScopeMessage, state.FinalResponse)
}

func TestRunParallelFanInOrderIndependent(t *testing.T) {
	// Stagger the trio differently across runs and assert the merged state
	// is identical either way.
	run := func(retrieveDelay, memoryDelay time.Duration) core.State {
		d := newDeps()
		d.retriever.delay = retrieveDelay
		d.memory.delay = memoryDelay
		p := d.build()

		state, err := p.Run(context.Background(), "what is my loan status", "s-1", nil)
		require.NoError(t, err)
		return state
	}

	slowRetrieve := run(50*time.Millisecond, 0)
	slowMemory := run(0, 50*time.Millisecond)

	assert.Equal(t, slowRetrieve.Intent, slowMemory.Intent)
	assert.Equal(t, slowRetrieve.Retrieval, slowMemory.Retrieval)
	assert.Equal(t, slowRetrieve.FinalResponse, slowMemory.FinalResponse)
	assert.Equal(t, slowRetrieve.Outcome, slowMemory.Outcome)

	require.NotNil(t, slowRetrieve.Memory)
	assert.NotEmpty(t, slowRetrieve.Memory.Working)
	assert.True(t, slowRetrieve.HasRetrieval())
}

func TestRunEmitsStageEvents(t *testing.T) {
	d := newDeps()
	p := d.build()

	var stages []string
	_, err := p.Run(context.Background(), "what is my loan status", "s-1", func(ev StageEvent) {
		stages = append(stages, ev.Stage)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ingest", "intent", "retrieve", "recall",
		"correlate", "draft", "safety_gate", "respond",
	}, stages)
}

func TestRunEmptyQueryDeclines(t *testing.T) {
	d := newDeps()
	p := d.build()

	state, err := p.Run(context.Background(), "   ", "s-1", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeDecline, state.Outcome)
	assert.Equal(t, outOfScopeMessage, state.FinalResponse)
	assert.Empty(t, d.completer.calls)
}

func TestRunIntentFallbackOnGarbage(t *testing.T) {
	d := newDeps()
	d.completer.replies[intentSystemPrompt] = "not json at all"
	p := d.build()

	state, err := p.Run(context.Background(), "what is my loan status", "s-1", nil)
	require.NoError(t, err)

	require.NotNil(t, state.Intent)
	assert.Equal(t, core.NeutralIntent(), *state.Intent)
	assert.Equal(t, core.OutcomeRespond, state.Outcome)
}
