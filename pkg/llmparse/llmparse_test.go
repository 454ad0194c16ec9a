package llmparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailDraftExtractor(t *testing.T) {
	text := "Sure! Here it is.\nTo: alice@x.com\nSubject: Meeting tomorrow\nBody: Hi Alice,\n\nSee you at 10.\n\nBest,\nBob"
	d, err := EmailDraftExtractor{}.Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", d.To)
	assert.Equal(t, "Meeting tomorrow", d.Subject)
	assert.Equal(t, "Hi Alice,\n\nSee you at 10.\n\nBest,\nBob", d.Body)
}

func TestEmailDraftExtractorMarkdownLabels(t *testing.T) {
	d, err := EmailDraftExtractor{}.Extract("**To:** <bob@y.org>\n**Subject:** Hello\n**Body:** Hey")
	require.NoError(t, err)
	assert.Equal(t, "bob@y.org", d.To)
	assert.Equal(t, "Hello", d.Subject)
	assert.Equal(t, "Hey", d.Body)
}

func TestEmailDraftExtractorMalformed(t *testing.T) {
	_, err := EmailDraftExtractor{}.Extract("I cannot help with that.")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEventExtractor(t *testing.T) {
	text := "Here you go:\n```json\n{\"title\": \"Dentist\", \"date\": \"2024-03-14\", \"time\": null, \"location\": \"\"}\n```"
	ev, err := EventExtractor{}.Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "Dentist", ev.Title)
	assert.Equal(t, "2024-03-14", ev.Date)
	assert.Empty(t, ev.Time)
}

func TestEventExtractorSkipsBrokenObject(t *testing.T) {
	ev, err := EventExtractor{}.Extract(`{broken {"title": "Lunch", "time": "12:30"}`)
	require.NoError(t, err)
	assert.Equal(t, "Lunch", ev.Title)
	assert.Equal(t, "12:30", ev.Time)
}

func TestEventExtractorNoTitle(t *testing.T) {
	_, err := EventExtractor{}.Extract(`{"date": "2024-03-14"}`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEventListExtractor(t *testing.T) {
	text := `Events: [{"title": "Standup", "date": "2024-03-14", "time": "09:30"}, {"date": "2024-03-15"}]`
	events, err := EventListExtractor{}.Extract(text)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Title)

	events, err = EventListExtractor{}.Extract("[]")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = EventListExtractor{}.Extract("no events found")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClassificationExtractor(t *testing.T) {
	x := ClassificationExtractor{Allowed: []string{"send_email", "conversation"}}

	c, err := x.Extract(`{"type": "send_email", "confidence": 0.92}`)
	require.NoError(t, err)
	assert.Equal(t, "send_email", c.Type)
	assert.InDelta(t, 0.92, c.Confidence, 1e-9)

	c, err = x.Extract(`Answer: {"type": "Conversation", "confidence": "3"}`)
	require.NoError(t, err)
	assert.Equal(t, "conversation", c.Type)
	assert.Equal(t, 1.0, c.Confidence)

	_, err = x.Extract(`{"type": "weather"}`)
	assert.ErrorIs(t, err, ErrMalformed)
}
