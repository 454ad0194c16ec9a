package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
)

// OllamaService implements TextGenerator using an Ollama server.
type OllamaService struct {
	client     *resty.Client
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaService creates a new Ollama service with static settings.
func NewOllamaService(baseURL, model string) *OllamaService {
	return NewOllamaServiceWithGetters(
		func() string { return baseURL },
		func() string { return model },
	)
}

// NewOllamaServiceWithGetters creates a new Ollama service with dynamic getters
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	if getBaseURL == nil {
		getBaseURL = func() string { return "" }
	}
	if getModel == nil {
		getModel = func() string { return "" }
	}
	return &OllamaService{
		client: resty.New().
			SetHeader("Content-Type", "application/json").
			SetTimeout(120 * time.Second),
		getBaseURL: getBaseURL,
		getModel:   getModel,
	}
}

func (o *OllamaService) baseURL() string {
	if u := strings.TrimRight(o.getBaseURL(), "/"); u != "" {
		return u
	}
	return defaultOllamaBaseURL
}

func (o *OllamaService) model() string {
	if m := o.getModel(); m != "" {
		return m
	}
	return defaultOllamaModel
}

func (o *OllamaService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	options := map[string]interface{}{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxOutputTokens > 0 {
		options["num_predict"] = opts.MaxOutputTokens
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	if opts.TopK > 0 {
		options["top_k"] = opts.TopK
	}

	var out ollamaGenerateResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(ollamaGenerateRequest{
			Model:   o.model(),
			Prompt:  prompt,
			Stream:  false,
			Options: options,
		}).
		SetResult(&out).
		Post(o.baseURL() + "/api/generate")
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ollama API error (%d): %s", resp.StatusCode(), resp.String())
	}
	return strings.TrimSpace(out.Response), nil
}

// Ping checks that the server answers /api/tags. baseURL overrides the
// configured endpoint when non-empty.
func (o *OllamaService) Ping(ctx context.Context, baseURL string) error {
	if baseURL == "" {
		baseURL = o.baseURL()
	}
	resp, err := o.client.R().SetContext(ctx).Get(strings.TrimRight(baseURL, "/") + "/api/tags")
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode())
	}
	return nil
}
