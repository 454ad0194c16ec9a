package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authdelivery "ema-backend/internal/auth/delivery"
	authdomain "ema-backend/internal/auth/domain"
	calendarusecase "ema-backend/internal/calendar/usecase"
	"ema-backend/internal/coordinator/dto"
	"ema-backend/internal/coordinator/usecase"
	"ema-backend/pkg/gcal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	usecase.Coordinator
	res    dto.Result
	err    error
	caller usecase.Caller
	req    dto.ActionRequest
}

func (f *fakeCoordinator) Dispatch(ctx context.Context, caller usecase.Caller, req dto.ActionRequest) (dto.Result, error) {
	f.caller, f.req = caller, req
	return f.res, f.err
}

func post(t *testing.T, coord usecase.Coordinator, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(authdelivery.AccountKey, &authdomain.Account{ID: "a1"})
		c.Set(authdelivery.SessionKey, "s1")
	})
	r.POST("/actions", NewActionHandler(coord).Handle)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandlePassesCallerAndRequest(t *testing.T) {
	coord := &fakeCoordinator{res: dto.Result{"events": []string{}}}

	w := post(t, coord, `{"action":"getEvents","requestId":"r1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events":[]}`, w.Body.String())
	assert.Equal(t, usecase.Caller{AccountID: "a1", SessionID: "s1"}, coord.caller)
	assert.Equal(t, "r1", coord.req.RequestID)
}

func TestHandleErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unknown", fmt.Errorf("%w: nope", usecase.ErrUnknownAction), http.StatusBadRequest, ""},
		{"bad request", usecase.ErrBadRequest, http.StatusBadRequest, ""},
		{"not found", calendarusecase.ErrEventNotFound, http.StatusNotFound, "Event not found"},
		{"permission", fmt.Errorf("%w: 403", gcal.ErrPermissionDenied), http.StatusForbidden, calendarusecase.PermissionMessage},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, &fakeCoordinator{err: tc.err}, `{"action":"addToCalendar","eventId":"e1"}`)
			assert.Equal(t, tc.status, w.Code)
			if tc.msg != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tc.msg, body["error"])
			}
		})
	}
}

func TestHandleRejectsMissingAction(t *testing.T) {
	w := post(t, &fakeCoordinator{}, `{"requestId":"r1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
