package gcal

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

func TestFromRemoteTimed(t *testing.T) {
	item := &calendar.Event{
		Id:      "r1",
		Summary: "Standup",
		Start:   &calendar.EventDateTime{DateTime: "2024-03-14T09:30:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2024-03-14T10:30:00Z"},
	}
	ev, ok := fromRemote(item, time.UTC)
	require.True(t, ok)
	assert.Equal(t, "Standup", ev.Title)
	assert.False(t, ev.AllDay)
	assert.Equal(t, 9, ev.Start.Hour())
	assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
}

func TestFromRemoteAllDay(t *testing.T) {
	item := &calendar.Event{Id: "r2", Summary: "Holiday", Start: &calendar.EventDateTime{Date: "2024-03-15"}}
	ev, ok := fromRemote(item, time.UTC)
	require.True(t, ok)
	assert.True(t, ev.AllDay)
	assert.Equal(t, "2024-03-15", ev.Start.Format("2006-01-02"))

	_, ok = fromRemote(&calendar.Event{Start: &calendar.EventDateTime{}}, time.UTC)
	assert.False(t, ok)
}

func TestIsPermissionError(t *testing.T) {
	assert.True(t, IsPermissionError(&googleapi.Error{Code: http.StatusForbidden}))
	assert.True(t, IsPermissionError(errors.New("Request had insufficient authentication scopes.")))
	assert.True(t, IsPermissionError(fmt.Errorf("wrapped: %w", ErrPermissionDenied)))
	assert.False(t, IsPermissionError(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, IsPermissionError(nil))

	err := classify(&googleapi.Error{Code: http.StatusForbidden, Message: "PERMISSION_DENIED"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
