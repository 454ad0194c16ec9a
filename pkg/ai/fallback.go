package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"ema-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// Provider is a generator with a name for logging.
type Provider struct {
	Name string
	Gen  TextGenerator
}

func Named(name string, gen TextGenerator) Provider {
	return Provider{Name: name, Gen: gen}
}

// FallbackService tries providers in order and moves to the next one when
// a provider fails. It never loops back to a provider that already failed.
type FallbackService struct {
	providers []Provider
	log       zerolog.Logger
}

func NewFallbackService(log zerolog.Logger, providers ...Provider) *FallbackService {
	return &FallbackService{
		providers: providers,
		log:       logger.Component(log, "AI"),
	}
}

func (f *FallbackService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var errs []error
	for _, p := range f.providers {
		if p.Gen == nil {
			continue
		}
		out, err := p.Gen.Generate(ctx, prompt, opts)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))

		switch {
		case IsQuotaError(err):
			f.log.Warn().Err(err).Str("provider", p.Name).Msg("quota exhausted, falling back")
		case IsConnectionError(err):
			f.log.Warn().Err(err).Str("provider", p.Name).Msg("connection failed, falling back")
		default:
			f.log.Warn().Err(err).Str("provider", p.Name).Msg("generation failed, falling back")
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", ErrNoProvider
	}
	return "", errors.Join(errs...)
}

// IsConnectionError checks if the error is a network/connection error
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// IsQuotaError checks if the error indicates API quota exhaustion (429)
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth degrading to a non-AI fallback
// rather than surfacing.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoProvider) || IsQuotaError(err) || IsConnectionError(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, code := range []string{"500", "502", "503", "504", "unavailable"} {
		if strings.Contains(errStr, code) {
			return true
		}
	}
	return false
}
