package delivery

import (
	"errors"
	"net/http"

	authdelivery "ema-backend/internal/auth/delivery"
	"ema-backend/internal/calendar/domain"
	"ema-backend/internal/calendar/usecase"
	"ema-backend/internal/coordinator/registry"
	"ema-backend/pkg/gcal"

	"github.com/gin-gonic/gin"
)

// EventHandler handles calendar-event HTTP requests
type EventHandler struct {
	eventsUsecase usecase.EventsUsecase
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventsUsecase usecase.EventsUsecase) *EventHandler {
	return &EventHandler{
		eventsUsecase: eventsUsecase,
	}
}

// MarkAddedRequest is the body of PATCH /api/calendar/events/:id
type MarkAddedRequest struct {
	Added *bool `json:"added" binding:"required"`
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, usecase.ErrMissingDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gcal.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": usecase.PermissionMessage})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetEvents returns the extracted events
// GET /api/calendar/events
func (h *EventHandler) GetEvents(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	events, err := h.eventsUsecase.GetEvents(c.Request.Context(), account.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []*domain.CalendarEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// AddToCalendar inserts an event into the remote calendar
// POST /api/calendar/events/:id/add
func (h *EventHandler) AddToCalendar(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	result, err := h.eventsUsecase.AddToCalendar(c.Request.Context(), account.ID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"eventId": result.RemoteID,
		"exists":  result.Exists,
		"event":   result.Event,
	})
}

// RemoveFromCalendar deletes the matching remote event
// DELETE /api/calendar/events/:id/remote
func (h *EventHandler) RemoveFromCalendar(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	removed, err := h.eventsUsecase.RemoveFromCalendar(c.Request.Context(), account.ID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"success": removed}
	if !removed {
		resp["message"] = "Event not found in Google Calendar"
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyEvent reports whether the event exists remotely
// GET /api/calendar/events/:id/verify
func (h *EventHandler) VerifyEvent(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	exists, err := h.eventsUsecase.VerifyEventInCalendar(c.Request.Context(), account.ID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// MarkAdded overrides the added flag
// PATCH /api/calendar/events/:id
func (h *EventHandler) MarkAdded(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)

	var req MarkAddedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.eventsUsecase.MarkEventAdded(c.Request.Context(), account.ID, c.Param("id"), *req.Added)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// DeleteEvent removes the local event only
// DELETE /api/calendar/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	if err := h.eventsUsecase.DeleteEvent(c.Request.Context(), account.ID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully"})
}

// Sync reconciles local events with the remote calendar
// POST /api/calendar/sync
func (h *EventHandler) Sync(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	synced, err := h.eventsUsecase.SyncCalendarEvents(c.Request.Context(), account.ID, registry.None)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to sync with Google Calendar."})
		return
	}
	events, err := h.eventsUsecase.GetEvents(c.Request.Context(), account.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "syncedCount": synced, "events": events})
}
