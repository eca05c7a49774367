package core

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	OutcomeRespond  Outcome = "respond"
	OutcomeDecline  Outcome = "decline"
	OutcomeEscalate Outcome = "escalate"
)

// State is the record threaded through the pipeline. Stages receive a
// value copy (frozen snapshot) and return an Update; only the orchestrator
// mutates the canonical instance, so parallel stages never race.
type State struct {
	// Input
	Query     string `json:"query"`
	SessionID string `json:"session_id"`

	// Ingest
	NormalizedQuery string        `json:"normalized_query,omitempty"`
	InputSafety     *SafetyResult `json:"input_safety,omitempty"`
	Escalate        bool          `json:"escalate"`

	// Parallel branch outputs
	Intent       *IntentResult     `json:"intent_result,omitempty"`
	Retrieval    []RetrievalResult `json:"retrieval_result,omitempty"`
	RetrievalRan bool              `json:"-"`
	Memory       *MemoryContext    `json:"memory_result,omitempty"`

	// Correlation and drafting
	Reasoning string `json:"reasoning_result,omitempty"`
	Draft     string `json:"draft_response,omitempty"`

	// Output gate
	OutputSafety *SafetyResult `json:"guardrails_result,omitempty"`

	// Terminal
	FinalResponse      string              `json:"final_response,omitempty"`
	RecommendedActions []RecommendedAction `json:"recommended_actions,omitempty"`
	Outcome            Outcome             `json:"outcome,omitempty"`
}

func (s *State) HasIntent() bool    { return s.Intent != nil }
func (s *State) HasMemory() bool    { return s.Memory != nil }
func (s *State) HasRetrieval() bool { return s.RetrievalRan }
func (s *State) HasDraft() bool     { return s.Draft != "" }

// Terminal reports whether an earlier stage already decided the outcome;
// downstream stages must no-op when it is set.
func (s *State) Terminal() bool {
	return s.Escalate || s.FinalResponse != ""
}

// Update is a partial state change returned by a stage. Nil pointer fields
// mean "leave untouched", which lets the parallel trio write disjoint keys.
type Update struct {
	NormalizedQuery    *string
	InputSafety        *SafetyResult
	Escalate           *bool
	Intent             *IntentResult
	Retrieval          *[]RetrievalResult
	Memory             *MemoryContext
	Reasoning          *string
	Draft              *string
	OutputSafety       *SafetyResult
	FinalResponse      *string
	RecommendedActions []RecommendedAction
	Outcome            *Outcome
}

// Apply merges an update into the canonical state. Called only by the
// orchestrator, between stages.
func (s *State) Apply(u Update) {
	if u.NormalizedQuery != nil {
		s.NormalizedQuery = *u.NormalizedQuery
	}
	if u.InputSafety != nil {
		s.InputSafety = u.InputSafety
	}
	if u.Escalate != nil {
		s.Escalate = *u.Escalate
	}
	if u.Intent != nil {
		s.Intent = u.Intent
	}
	if u.Retrieval != nil {
		s.Retrieval = *u.Retrieval
		s.RetrievalRan = true
	}
	if u.Memory != nil {
		s.Memory = u.Memory
	}
	if u.Reasoning != nil {
		s.Reasoning = *u.Reasoning
	}
	if u.Draft != nil {
		s.Draft = *u.Draft
	}
	if u.OutputSafety != nil {
		s.OutputSafety = u.OutputSafety
	}
	if u.FinalResponse != nil {
		s.FinalResponse = *u.FinalResponse
	}
	if u.RecommendedActions != nil {
		s.RecommendedActions = u.RecommendedActions
	}
	if u.Outcome != nil {
		s.Outcome = *u.Outcome
	}
}
