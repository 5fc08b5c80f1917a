package ai

import (
	"fmt"

	"github.com/jaeyoon-song/fabsight/internal/ai/ollama"
	"github.com/jaeyoon-song/fabsight/internal/ai/openai"
	"github.com/jaeyoon-song/fabsight/internal/config"
	"github.com/jaeyoon-song/fabsight/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai", cfg.Provider)
	}
}
