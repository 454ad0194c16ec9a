package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	authdelivery "ema-backend/internal/auth/delivery"
	authdomain "ema-backend/internal/auth/domain"
	"ema-backend/internal/calendar/domain"
	"ema-backend/internal/calendar/usecase"
	"ema-backend/pkg/gcal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvents implements only what the handlers under test call.
type fakeEvents struct {
	usecase.EventsUsecase
	addErr error
}

func (f *fakeEvents) AddToCalendar(ctx context.Context, accountID, eventID string) (*usecase.AddResult, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &usecase.AddResult{RemoteID: "r1", Exists: true, Event: &domain.CalendarEvent{ID: eventID, Added: true}}, nil
}

func (f *fakeEvents) GetEvents(ctx context.Context, accountID string) ([]*domain.CalendarEvent, error) {
	return nil, nil
}

func newRouter(uc usecase.EventsUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewEventHandler(uc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(authdelivery.AccountKey, &authdomain.Account{ID: "a1"})
	})
	r.GET("/events", h.GetEvents)
	r.POST("/events/:id/add", h.AddToCalendar)
	return r
}

func TestAddToCalendarResponses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"permission", fmt.Errorf("%w: 403", gcal.ErrPermissionDenied), http.StatusForbidden, usecase.PermissionMessage},
		{"missing", usecase.ErrEventNotFound, http.StatusNotFound, "Event not found"},
		{"no date", usecase.ErrMissingDate, http.StatusBadRequest, usecase.ErrMissingDate.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/events/e1/add", nil)
			newRouter(&fakeEvents{addErr: tc.err}).ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tc.err == nil {
				assert.Equal(t, true, body["exists"])
				assert.Equal(t, "r1", body["eventId"])
				return
			}
			assert.Equal(t, tc.body, body["error"])
		})
	}
}

func TestGetEventsNeverNull(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&fakeEvents{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events": []}`, w.Body.String())
}
