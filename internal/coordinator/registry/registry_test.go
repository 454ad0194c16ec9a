package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCancelRelease(t *testing.T) {
	r := New()

	tok := r.Register("req-1", "getEmails")
	assert.False(t, tok.Cancelled())
	assert.False(t, r.IsCancelled("req-1"))
	require.Len(t, r.Active(), 1)

	assert.True(t, r.Cancel("req-1"))
	assert.True(t, tok.Cancelled())
	assert.ErrorIs(t, Check(tok), ErrCancelled)
	assert.Empty(t, r.Active())

	assert.False(t, r.Cancel("req-1"), "second cancel is a no-op")
}

func TestReleaseKeepsNewerRegistration(t *testing.T) {
	r := New()

	first := r.Register("same", "summarizeEmails")
	second := r.Register("same", "summarizeEmails")
	assert.True(t, first.Cancelled(), "re-registering supersedes the older request")

	r.Release("same", first)
	assert.False(t, r.IsCancelled("same"))

	r.Release("same", second)
	assert.Empty(t, r.Active())
}

func TestEmptyIDIsNeverCancelled(t *testing.T) {
	r := New()
	tok := r.Register("", "bootstrap")
	assert.Equal(t, None, tok)
	assert.NoError(t, Check(tok))
	assert.NoError(t, Check(nil))
	assert.Empty(t, r.Active())
}

func TestConcurrentUse(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i%10)
			tok := r.Register(id, "x")
			if i%2 == 0 {
				r.Cancel(id)
			}
			r.Release(id, tok)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, len(r.Active()), 10)
}
