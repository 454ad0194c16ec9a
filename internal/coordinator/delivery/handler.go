package delivery

import (
	"net/http"

	authdelivery "ema-backend/internal/auth/delivery"
	calendarusecase "ema-backend/internal/calendar/usecase"
	"ema-backend/internal/coordinator/dto"
	"ema-backend/internal/coordinator/usecase"
	"ema-backend/pkg/gcal"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// ActionHandler serves the action-keyed UI protocol.
type ActionHandler struct {
	coordinator usecase.Coordinator
}

func NewActionHandler(coordinator usecase.Coordinator) *ActionHandler {
	return &ActionHandler{
		coordinator: coordinator,
	}
}

// POST /api/actions
func (h *ActionHandler) Handle(c *gin.Context) {
	var req dto.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := authdelivery.CurrentAccount(c)
	caller := usecase.Caller{AccountID: account.ID, SessionID: authdelivery.CurrentSession(c)}

	res, err := h.coordinator.Dispatch(c.Request.Context(), caller, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/actions/active
func (h *ActionHandler) Active(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requests": h.coordinator.Registry().Active()})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrUnknownAction), errors.Is(err, usecase.ErrBadRequest),
		errors.Is(err, calendarusecase.ErrMissingDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calendarusecase.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, gcal.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": calendarusecase.PermissionMessage})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
