package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// OllamaSettings is the part of the configuration editable at runtime.
type OllamaSettings struct {
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// Pinger checks that an Ollama server answers. An empty baseURL means the
// configured one.
type Pinger interface {
	Ping(ctx context.Context, baseURL string) error
}

// RuntimeSettings holds the live Ollama endpoint. The AI generator reads it
// through BaseURL and Model on every request.
type RuntimeSettings struct {
	mu       sync.RWMutex
	settings OllamaSettings
	pinger   Pinger
}

func NewRuntimeSettings(baseURL, model string) *RuntimeSettings {
	return &RuntimeSettings{settings: OllamaSettings{OllamaBaseURL: baseURL, OllamaModel: model}}
}

func (s *RuntimeSettings) SetPinger(p Pinger) {
	s.pinger = p
}

func (s *RuntimeSettings) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.OllamaBaseURL
}

func (s *RuntimeSettings) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.OllamaModel
}

func (s *RuntimeSettings) snapshot() OllamaSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GetOllamaSettings returns current Ollama configuration
// GET /api/settings/ollama
func (s *RuntimeSettings) GetOllamaSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

// UpdateOllamaSettings updates Ollama configuration at runtime
// PUT /api/settings/ollama
func (s *RuntimeSettings) UpdateOllamaSettings(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.settings.OllamaBaseURL = req.OllamaBaseURL
	if req.OllamaModel != "" {
		s.settings.OllamaModel = req.OllamaModel
	}
	current := s.settings
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":         "Ollama settings updated successfully",
		"ollama_base_url": current.OllamaBaseURL,
		"ollama_model":    current.OllamaModel,
	})
}

// TestOllamaConnection tests if the Ollama server is reachable
// POST /api/settings/ollama/test
func (s *RuntimeSettings) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	// No body means the current endpoint.
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = s.BaseURL()
	}
	if s.pinger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "error": "ollama client not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := s.pinger.Ping(ctx, req.OllamaBaseURL); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
	})
}
