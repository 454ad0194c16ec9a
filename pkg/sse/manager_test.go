package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReachesSubscriber(t *testing.T) {
	m := NewManager()
	go m.Run()
	defer m.Close()

	sub := m.subscribe("acct-1")
	other := m.subscribe("acct-2")
	assert.Equal(t, 1, m.Subscribers("acct-1"))

	m.Send("acct-1", "summary_update", map[string]string{"email_id": "m1"})

	select {
	case msg := <-sub.ch:
		assert.Equal(t, "summary_update", msg.Event)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case <-other.ch:
		t.Fatal("message leaked to another key")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	m := NewManager()
	sub := m.subscribe("k")
	m.unsubscribe(sub)
	require.Equal(t, 0, m.Subscribers("k"))
}
