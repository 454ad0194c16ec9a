package dto

import (
	emaildomain "ema-backend/internal/email/domain"
)

// ActionRequest is the body of POST /api/actions. Only the fields the
// action uses are read.
type ActionRequest struct {
	Action string `json:"action" binding:"required"`
	// RequestID names a long-running request for later cancellation. For
	// cancelRequest it is the request to cancel.
	RequestID string `json:"requestId"`

	TimeFilter      emaildomain.TimeFilter `json:"timeFilter"`
	ReadFilter      emaildomain.ReadFilter `json:"readFilter"`
	ForceRefresh    bool                   `json:"forceRefresh"`
	ForceRegenerate bool                   `json:"forceRegenerate"`

	EmailID  string   `json:"emailId"`
	EmailIDs []string `json:"emailIds"`
	EventID  string   `json:"eventId"`
	Added    *bool    `json:"added"`

	Message string          `json:"message"`
	Context *MessageContext `json:"context"`
}

// MessageContext is what the UI already holds when a chat message is sent.
type MessageContext struct {
	Emails []*emaildomain.Email `json:"emails"`
}

func (r ActionRequest) Filter() emaildomain.Filter {
	return emaildomain.Filter{Time: r.TimeFilter, Read: r.ReadFilter}.Normalize()
}

// Result is an action's JSON response body.
type Result map[string]any

// Cancelled is returned by any long-running action whose request was
// cancelled.
var Cancelled = Result{"cancelled": true}
