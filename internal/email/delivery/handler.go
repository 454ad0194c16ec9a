package delivery

import (
	"net/http"

	authdelivery "ema-backend/internal/auth/delivery"
	emaildomain "ema-backend/internal/email/domain"
	emaildto "ema-backend/internal/email/dto"
	"ema-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

// EmailHandler exposes the stored mail, contacts and per-email summaries
// over REST.
type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

// GET /api/emails?timeFilter=week&readFilter=unread
func (h *EmailHandler) GetEmails(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	filter := emaildomain.Filter{
		Time: emaildomain.TimeFilter(c.Query("timeFilter")),
		Read: emaildomain.ReadFilter(c.Query("readFilter")),
	}
	emails, err := h.emailUsecase.CachedEmails(c.Request.Context(), account.ID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, emaildto.EmailsResponse{Emails: emails, Total: len(emails)})
}

// GET /api/emails/:id/summary
func (h *EmailHandler) GetEmailSummary(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	summary, err := h.emailUsecase.SummarizeEmail(c.Request.Context(), account.ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email_id": c.Param("id"), "summary": summary})
}

// POST /api/emails/summaries
// Returns cached summaries immediately; the rest arrive as summary_update events.
func (h *EmailHandler) QueueSummaries(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)

	var req emaildto.QueueSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.EmailIDs) == 0 {
		c.JSON(http.StatusOK, emaildto.QueueSummaryResponse{Summaries: map[string]string{}})
		return
	}

	cached, queued, err := h.emailUsecase.QueueSummaries(c.Request.Context(), account.ID, req.EmailIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get summaries"})
		return
	}
	c.JSON(http.StatusOK, emaildto.QueueSummaryResponse{Summaries: cached, Queued: queued})
}

// GET /api/contacts
func (h *EmailHandler) GetContacts(c *gin.Context) {
	account := authdelivery.CurrentAccount(c)
	var (
		contacts []emaildomain.Contact
		err      error
	)
	if q := c.Query("q"); q != "" {
		contacts, err = h.emailUsecase.SearchContacts(c.Request.Context(), account.ID, q)
	} else {
		contacts, err = h.emailUsecase.ListContacts(c.Request.Context(), account.ID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, emaildto.ContactsResponse{Contacts: contacts})
}
