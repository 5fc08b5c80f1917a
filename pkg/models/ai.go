package models

import (
	"context"
	"errors"
)

// Sentinel errors returned by AI providers. Callers classify failures with
// errors.Is rather than string matching.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// Complete sends a text-completion request and returns the generated text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Embed returns a fixed-length embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// CompletionRequest is the input to a text-completion call.
type CompletionRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}
