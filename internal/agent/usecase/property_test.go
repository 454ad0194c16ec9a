package usecase

import (
	"context"
	"fmt"
	"testing"

	"ema-backend/internal/agent/domain"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHistoryNeverExceedsBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t)
		n := rapid.IntRange(1, 25).Draw(t, "turns")
		for i := 0; i < n; i++ {
			f.say(t, fmt.Sprintf("general chatter number %d please", i))
		}

		turns, err := f.agent.History(context.Background(), "sess-1")
		require.NoError(t, err)
		require.Len(t, turns, min(n, domain.MaxHistory))
		require.Equal(t, fmt.Sprintf("general chatter number %d please", n-1), turns[0].UserText)
	})
}

func TestDraftEditsNeverChangeRecipient(t *testing.T) {
	instructions := []string{"make it shorter", "change the tone to formal", "add a greeting", "rewrite it", "more professional please"}

	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t)
		f.gen.compose = aliceDraft
		f.say(t, "send an email to Alice about the meeting tomorrow")

		edits := rapid.IntRange(1, 6).Draw(t, "edits")
		for i := 0; i < edits; i++ {
			other := rapid.StringMatching(`[a-z]{3,8}@evil\.com`).Draw(t, "other")
			instruction := rapid.SampledFrom(instructions).Draw(t, "instruction")
			f.gen.edit = fmt.Sprintf("To: %s\nSubject: Edit %d\nBody:\nVersion %d", other, i, i)

			resp := f.say(t, instruction)
			require.NotNil(t, resp.PendingEmail)
			require.Equal(t, "alice@x.com", resp.PendingEmail.To)
		}

		state, err := f.sessions.Get("sess-1")
		require.NoError(t, err)
		require.Equal(t, "alice@x.com", state.Draft.To)
		require.Equal(t, fmt.Sprintf("Edit %d", edits-1), state.Draft.Subject)
	})
}
