package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	out   string
	err   error
	calls int
}

func (s *stubGenerator) Generate(context.Context, string, GenerateOptions) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestFallbackUsesSecondOnQuota(t *testing.T) {
	primary := &stubGenerator{err: errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")}
	secondary := &stubGenerator{out: "hello"}
	f := NewFallbackService(zerolog.Nop(), Named("gemini", primary), Named("ollama", secondary))

	out, err := f.Generate(context.Background(), "p", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackAllFail(t *testing.T) {
	f := NewFallbackService(zerolog.Nop(),
		Named("a", &stubGenerator{err: errors.New("boom")}),
		Named("b", &stubGenerator{err: errors.New("dial tcp: connection refused")}),
	)
	_, err := f.Generate(context.Background(), "p", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
	assert.True(t, IsConnectionError(err))

	_, err = NewFallbackService(zerolog.Nop()).Generate(context.Background(), "p", GenerateOptions{})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsQuotaError(errors.New("Too Many Requests")))
	assert.False(t, IsQuotaError(errors.New("bad request")))
	assert.True(t, IsConnectionError(errors.New("unexpected EOF")))
	assert.True(t, IsTransient(errors.New("503 Service Unavailable")))
	assert.True(t, IsTransient(ErrNoProvider))
	assert.False(t, IsTransient(errors.New("invalid argument")))
	assert.False(t, IsTransient(nil))
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": "  pong  ", "done": true}`))
	}))
	defer srv.Close()

	o := NewOllamaService(srv.URL, "mistral")
	out, err := o.Generate(context.Background(), "ping", GenerateOptions{Temperature: 0.1, MaxOutputTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, "mistral", got.Model)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 50, got.Options["num_predict"])
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllamaService(srv.URL, "")
	_, err := o.Generate(context.Background(), "ping", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	assert.Error(t, o.Ping(context.Background(), ""))
}

func TestOllamaDynamicBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer srv.Close()

	url := "http://127.0.0.1:1"
	o := NewOllamaServiceWithGetters(func() string { return url }, nil)
	url = srv.URL
	assert.NoError(t, o.Ping(context.Background(), ""))
	assert.Equal(t, defaultOllamaModel, o.model())
}
