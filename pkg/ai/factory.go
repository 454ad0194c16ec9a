package ai

import (
	"context"
	"fmt"

	"ema-backend/pkg/gemini"

	"github.com/rs/zerolog"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	GeminiAPIKey string
	GeminiModel  string

	// Getters let the Ollama endpoint change at runtime.
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

type geminiGenerator struct {
	svc *gemini.GeminiService
}

func (g geminiGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return g.svc.Generate(ctx, prompt, gemini.Params(opts))
}

// NewTextGenerator builds the generator selected by cfg.Provider. With
// ProviderAuto and a Gemini key, Gemini runs first and Ollama backs it up.
func NewTextGenerator(ctx context.Context, cfg Config, log zerolog.Logger) (TextGenerator, error) {
	ollama := NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)

	newGemini := func() (TextGenerator, error) {
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		svc, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return geminiGenerator{svc: svc}, nil
	}

	switch cfg.Provider {
	case ProviderGemini:
		return newGemini()
	case ProviderOllama:
		return ollama, nil
	default:
		if cfg.GeminiAPIKey == "" {
			return ollama, nil
		}
		g, err := newGemini()
		if err != nil {
			return nil, err
		}
		return NewFallbackService(log, Named("gemini", g), Named("ollama", ollama)), nil
	}
}
