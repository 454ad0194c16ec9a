package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("ema", "debug").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("ema", "").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("ema", "loud").GetLevel())
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).With().Str("service", "ema").Logger()

	l := Component(base, "Coordinator")
	l.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Coordinator", line["component"])
	assert.Equal(t, "ema", line["service"])
	assert.Equal(t, "hello", line["message"])
}
