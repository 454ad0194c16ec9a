package usecase

import (
	"context"
	"fmt"
	"strings"

	"ema-backend/internal/agent/domain"
	calendardomain "ema-backend/internal/calendar/domain"
	calendarusecase "ema-backend/internal/calendar/usecase"
	"ema-backend/pkg/dateutil"
	"ema-backend/pkg/gcal"
	"ema-backend/pkg/llmparse"

	"github.com/pkg/errors"
)

func (a *agentUsecase) createEvent(ctx context.Context, turn Turn, state *domain.SessionState) *Response {
	now := a.now().In(a.loc)
	out, err := a.generate(ctx, eventPrompt(turn.Message, now), eventOptions)
	if err != nil {
		a.log.Error().Err(err).Msg("event extraction failed")
		return &Response{Reply: "❌ I understood you want a calendar event but couldn't read the details. Please try again."}
	}
	fields, err := llmparse.EventExtractor{}.Extract(out)
	if err != nil {
		return &Response{Reply: "I couldn't tell what the event is. Could you describe it with a title, date and time?"}
	}

	date, ok := dateutil.Standardize(fields.Date, now)
	if !ok {
		state.Reset()
		state.State = domain.StateAwaitingEventDetails
		state.PendingEvent = &domain.PendingEvent{
			Title:       fields.Title,
			Time:        fields.Time,
			Location:    fields.Location,
			Description: fields.Description,
		}
		return &Response{Reply: fmt.Sprintf("📅 What date is \"%s\"?", fields.Title)}
	}

	return a.insertEvent(ctx, turn.AccountID, &calendardomain.CalendarEvent{
		Title:       fields.Title,
		Date:        calendardomain.StringPtr(date),
		Time:        calendardomain.StringPtr(fields.Time),
		Location:    fields.Location,
		Description: fields.Description,
		Confidence:  calendardomain.ConfidenceHigh,
	})
}

// completePendingEvent finishes an event that was waiting for a date. ok
// is false when the message carries no date.
func (a *agentUsecase) completePendingEvent(ctx context.Context, turn Turn, state *domain.SessionState) (*Response, bool) {
	now := a.now().In(a.loc)
	date, ok := findDate(turn.Message, now)
	if !ok {
		return nil, false
	}
	pending := state.PendingEvent
	clock := pending.Time
	if clock == "" {
		if m := clockInTextRe.FindString(turn.Message); m != "" {
			clock = strings.TrimSpace(m)
		}
	}
	state.Reset()

	resp := a.insertEvent(ctx, turn.AccountID, &calendardomain.CalendarEvent{
		Title:       pending.Title,
		Date:        calendardomain.StringPtr(date),
		Time:        calendardomain.StringPtr(clock),
		Location:    pending.Location,
		Description: pending.Description,
		Confidence:  calendardomain.ConfidenceHigh,
	})
	resp.Intent = IntentAddEvent
	return resp, true
}

func (a *agentUsecase) insertEvent(ctx context.Context, accountID string, ev *calendardomain.CalendarEvent) *Response {
	saved, err := a.calendar.SaveEvent(ctx, accountID, ev)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to save chat event")
		return &Response{Reply: "❌ I understood the event but couldn't save it. Please try again."}
	}

	res, err := a.calendar.AddToCalendar(ctx, accountID, saved.ID)
	switch {
	case errors.Is(err, gcal.ErrPermissionDenied):
		return &Response{Reply: calendarusecase.PermissionMessage, Event: saved}
	case err != nil:
		a.log.Error().Err(err).Str("event", saved.ID).Msg("calendar insert failed")
		return &Response{Reply: "❌ I saved the event but couldn't add it to your calendar.", Event: saved}
	case res.Exists:
		return &Response{Reply: fmt.Sprintf("📅 \"%s\" is already in your calendar.", saved.Title), EventAdded: true, Event: res.Event}
	}

	when := saved.DateValue()
	if t := saved.TimeValue(); t != "" {
		when += " at " + t
	}
	return &Response{
		Reply:      fmt.Sprintf("✅ Added \"%s\" to your calendar on %s.", saved.Title, when),
		EventAdded: true,
		Event:      res.Event,
	}
}
