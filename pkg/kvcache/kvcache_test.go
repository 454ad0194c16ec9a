package kvcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title string
	Added bool
}

func TestPutGet(t *testing.T) {
	s := New(8, time.Minute)
	s.Put("events:a", []sample{{Title: "Standup", Added: true}})

	var got []sample
	require.True(t, s.Get("events:a", &got))
	assert.Equal(t, []sample{{Title: "Standup", Added: true}}, got)

	assert.False(t, s.Get("events:b", &got))
}

func TestDeleteAndPurge(t *testing.T) {
	s := New(0, 0)
	s.Put("k", "v")
	v, ok := s.GetString("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	s.Delete("k")
	_, ok = s.GetString("k")
	assert.False(t, ok)

	s.Put("k2", 1)
	s.Purge()
	var n int
	assert.False(t, s.Get("k2", &n))
}

func TestExpiry(t *testing.T) {
	s := New(8, 20*time.Millisecond)
	s.Put("k", "v")
	assert.Eventually(t, func() bool {
		_, ok := s.GetString("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
