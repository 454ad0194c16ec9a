package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-2.0-flash"

// Params mirrors the generation knobs exposed by the model. Zero values
// leave the model default in place.
type Params struct {
	Temperature     float32
	MaxOutputTokens int32
	TopP            float32
	TopK            int32
}

type GeminiService struct {
	client *genai.Client
	model  string
}

func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &GeminiService{client: client, model: model}, nil
}

func (g *GeminiService) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	m := g.client.GenerativeModel(g.model)
	if p.Temperature > 0 {
		m.SetTemperature(p.Temperature)
	}
	if p.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(p.MaxOutputTokens)
	}
	if p.TopP > 0 {
		m.SetTopP(p.TopP)
	}
	if p.TopK > 0 {
		m.SetTopK(p.TopK)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// First candidate with content is the answer.
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func (g *GeminiService) Close() error {
	return g.client.Close()
}
