package ai

import (
	"context"
	"errors"
)

// GenerateOptions tunes one generation call. Zero fields keep the
// provider's defaults.
type GenerateOptions struct {
	Temperature     float32
	MaxOutputTokens int32
	TopP            float32
	TopK            int32
}

// TextGenerator is the generative-text collaborator. Implement this
// interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

var ErrNoProvider = errors.New("no AI provider available")
