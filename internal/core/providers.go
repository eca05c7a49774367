package core

import "context"

// Completer is the opaque text-completion collaborator. It may be slow or
// unavailable; callers must tolerate errors.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Embedder turns text into a fixed-dimension vector. An index instance is
// bound to exactly one embedder for its whole lifetime; mixing embedding
// spaces corrupts distance comparisons.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Moderator is the content-safety collaborator.
type Moderator interface {
	Classify(ctx context.Context, text string) (Moderation, error)
}
