// Package mock provides a scriptable AIProvider for tests.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/jaeyoon-song/fabsight/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing. CompleteCalls and
// EmbedCalls count invocations so tests can assert how many model calls a
// pipeline run performed.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)
	EmbedFunc    func(ctx context.Context, text string) ([]float32, error)

	CompleteCalls atomic.Int64
	EmbedCalls    atomic.Int64
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	m.CompleteCalls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.EmbedCalls.Add(1)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// NewMockProvider returns a MockProvider with sensible default responses:
// a valid root-cause JSON payload for completions and a fixed embedding.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "```json\n" +
				`{"problem_summary": "OEE dropped below target", "root_causes": [` +
				`{"cause": "Extended equipment downtime", "probability": 50, "evidence": "3h DOWN event overlapping the shift"},` +
				`{"cause": "Lot holds blocking the line", "probability": 30, "evidence": "2 HOLD transitions recorded"},` +
				`{"cause": "High-complexity recipe mix", "probability": 20, "evidence": "complexity 9/10 recipe in rotation"}` +
				`]}` + "\n```", nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
		EmbedFunc: func(_ context.Context, _ string) ([]float32, error) {
			return nil, err
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
