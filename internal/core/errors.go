package core

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable marks a failed call to an external collaborator
// (LLM, embeddings, moderation). Stages recover from it with a conservative
// fallback instead of failing the pipeline.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrIndexUnavailable is returned when the vector index cannot embed or
// store documents (no reachable embedding backend and no fallback).
var ErrIndexUnavailable = errors.New("vector index unavailable")

// ConfigError reports an invalid configuration value. It is fatal at
// startup; the process must not begin serving with one of these.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}
