// Package hash computes the short content fingerprints used as cache keys.
package hash

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Content fingerprints free text. Case and surrounding whitespace are ignored
// so "Hi" and " hi " share a cache row.
func Content(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	return format(xxhash.Sum64String(normalized))
}

// Keyed fingerprints text under a namespace, e.g. "classify" or "chat".
func Keyed(namespace, text string) string {
	return namespace + ":" + Content(text)
}

// Item is the minimal view of a message needed to fingerprint a mail set.
type Item struct {
	ID      string
	Snippet string
}

// EmailSet fingerprints a set of messages independent of their order.
func EmailSet(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		snippet := it.Snippet
		if len(snippet) > 100 {
			snippet = snippet[:100]
		}
		parts = append(parts, it.ID+":"+snippet)
	}
	sort.Strings(parts)
	return format(xxhash.Sum64String(strings.Join(parts, "|")))
}

func format(sum uint64) string {
	s := strconv.FormatUint(sum, 16)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}
	return s
}
