package dto

import emaildomain "ema-backend/internal/email/domain"

type EmailsResponse struct {
	Emails []*emaildomain.Email `json:"emails"`
	Total  int                  `json:"total"`
}

type ContactsResponse struct {
	Contacts []emaildomain.Contact `json:"contacts"`
}

type QueueSummaryRequest struct {
	EmailIDs []string `json:"email_ids" binding:"required"`
}

type QueueSummaryResponse struct {
	Summaries map[string]string `json:"summaries"`
	Queued    int               `json:"queued"`
}
