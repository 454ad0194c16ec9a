// Package kvcache is the fast ephemeral key-value layer that sits in front of
// the durable store for values the UI needs synchronously.
package kvcache

import (
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 1024
	DefaultTTL  = 7 * 24 * time.Hour
)

type Store struct {
	lru *expirable.LRU[string, []byte]
}

func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Put stores v as JSON. Values that cannot be encoded are skipped.
func (s *Store) Put(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.lru.Add(key, b)
}

// Get decodes the value under key into out and reports whether it was present.
func (s *Store) Get(key string, out any) bool {
	b, ok := s.lru.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

func (s *Store) GetString(key string) (string, bool) {
	var v string
	ok := s.Get(key, &v)
	return v, ok
}

func (s *Store) Delete(key string) {
	s.lru.Remove(key)
}

func (s *Store) Purge() {
	s.lru.Purge()
}
