package core

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Urgency / SLA risk levels produced by the intent classifier.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Chunk is a contiguous substring of a source document with character offsets.
// Invariant: 0 <= Start < End <= len(document).
type Chunk struct {
	Text  string
	Start int
	End   int
}

// IndexedChunk is a chunk as stored in the vector index. ID is a stable hash
// of (SourceFile, ChunkIndex) so re-indexing a file overwrites its chunks.
type IndexedChunk struct {
	Chunk
	ID         int64
	SourceFile string
	ChunkIndex int
	Embedding  []float32
}

// RetrievalResult is a chunk decorated with its distance to a query.
// Lower distance means more similar. Distance is nil when the backend does
// not report one.
type RetrievalResult struct {
	Text       string   `json:"text"`
	SourceFile string   `json:"source_file"`
	ChunkIndex int      `json:"chunk_index"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Distance   *float64 `json:"distance,omitempty"`
}

// IntentResult is the structured output of the intent classification stage.
type IntentResult struct {
	Intent                  string `json:"intent"`
	Urgency                 string `json:"urgency"`
	SLARisk                 string `json:"sla_risk"`
	RequiresHumanEscalation bool   `json:"requires_human_escalation,omitempty"`
}

// NeutralIntent is the conservative fallback used when classification fails.
func NeutralIntent() IntentResult {
	return IntentResult{Intent: "unknown", Urgency: LevelMedium, SLARisk: LevelLow}
}

// Moderation is the raw verdict of the content-safety collaborator.
type Moderation struct {
	Flagged    bool               `json:"flagged"`
	Categories []string           `json:"categories,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// SafetyResult is the outcome of a guardrails check on input or output text.
type SafetyResult struct {
	Safe       bool    `json:"safe"`
	Confidence float64 `json:"confidence"`
	NoAnswer   bool    `json:"no_answer"`
	Reason     string  `json:"reason"`
}

type MemoryType string

const (
	MemoryWorking  MemoryType = "working"
	MemoryEpisodic MemoryType = "episodic"
	MemorySemantic MemoryType = "semantic"
)

// MemoryRecord is a persisted note. Working records are session-scoped and
// pruned to a fixed window; episodic and semantic records outlive sessions.
type MemoryRecord struct {
	ID        string            `json:"id"`
	Type      MemoryType        `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// MemoryContext is what the recall stage hands to correlation.
type MemoryContext struct {
	Working  []MemoryRecord `json:"working"`
	Episodic []MemoryRecord `json:"episodic"`
	Semantic []MemoryRecord `json:"semantic"`
}

// RecommendedAction is a follow-up suggestion attached to a successful answer.
// The execute path is not implemented; actions are advisory only.
type RecommendedAction struct {
	Action      string `json:"action"`
	Description string `json:"description"`
}
