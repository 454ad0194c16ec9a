package usecase

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"ema-backend/internal/agent/domain"
	"ema-backend/internal/agent/repository"
	cacherepo "ema-backend/internal/cache/repository"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// HistoryTTL is how long conversation turns survive the maintenance sweep.
const HistoryTTL = 30 * 24 * time.Hour

var (
	yesRe  = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|sure|ok|okay|send it|y)\s*[.!]*\s*$`)
	noRe   = regexp.MustCompile(`(?i)^\s*(no|nope|nah|cancel|don'?t send|n)\s*[.!]*\s*$`)
	editRe = regexp.MustCompile(`(?i)\b(edit|change|update|modify|revise|rewrite|fix|improve|make it|add|remove|shorter|longer|shorten|professional|formal|friendly|casual|tone)\b`)
)

type agentUsecase struct {
	historyRepo repository.HistoryRepository
	sessionRepo repository.SessionRepository
	cacheRepo   cacherepo.CacheRepository
	classifier  *Classifier
	mail        MailPort
	calendar    CalendarPort
	loc         *time.Location
	log         zerolog.Logger

	gen   ai.TextGenerator
	now   func() time.Time
	locks sync.Map
}

// NewAgentUsecase creates the conversational agent. loc anchors the dates
// of events created from chat.
func NewAgentUsecase(
	historyRepo repository.HistoryRepository,
	sessionRepo repository.SessionRepository,
	cacheRepo cacherepo.CacheRepository,
	mail MailPort,
	calendar CalendarPort,
	loc *time.Location,
	log zerolog.Logger,
) AgentUsecase {
	if loc == nil {
		loc = time.Local
	}
	return &agentUsecase{
		historyRepo: historyRepo,
		sessionRepo: sessionRepo,
		cacheRepo:   cacheRepo,
		classifier:  NewClassifier(cacheRepo, log),
		mail:        mail,
		calendar:    calendar,
		loc:         loc,
		log:         logger.Component(log, "Agent"),
		now:         time.Now,
	}
}

func (a *agentUsecase) SetAIService(svc ai.TextGenerator) {
	a.gen = svc
	a.classifier.SetAIService(svc)
}

func (a *agentUsecase) Classify(ctx context.Context, text string) Classification {
	c, _ := a.classifier.Classify(ctx, text)
	return c
}

func (a *agentUsecase) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := a.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (a *agentUsecase) Respond(ctx context.Context, turn Turn) (*Response, error) {
	mu := a.sessionLock(turn.SessionID)
	mu.Lock()
	defer mu.Unlock()

	state, err := a.sessionRepo.Get(turn.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load session state")
	}
	if state == nil {
		state = &domain.SessionState{SessionID: turn.SessionID, AccountID: turn.AccountID, State: domain.StateIdle}
	}
	state.AccountID = turn.AccountID

	history, err := a.historyRepo.Recent(turn.SessionID, domain.MaxHistory)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}

	turn.Message = strings.TrimSpace(turn.Message)
	resp := a.dispatch(ctx, turn, state, history)

	if err := a.sessionRepo.Save(state); err != nil {
		return nil, errors.Wrap(err, "save session state")
	}
	if err := a.historyRepo.Append(&domain.ChatTurn{
		SessionID: turn.SessionID,
		AccountID: turn.AccountID,
		UserText:  turn.Message,
		AgentText: resp.Reply,
		CreatedAt: a.now(),
	}); err != nil {
		return nil, errors.Wrap(err, "append history")
	}
	if err := a.historyRepo.Trim(turn.SessionID, domain.MaxHistory); err != nil {
		a.log.Warn().Err(err).Str("session", turn.SessionID).Msg("failed to trim history")
	}
	return resp, nil
}

// dispatch resolves pending dialogue state first, then routes by intent.
// It mutates state in place.
func (a *agentUsecase) dispatch(ctx context.Context, turn Turn, state *domain.SessionState, history []domain.ChatTurn) *Response {
	switch state.State {
	case domain.StateAwaitingEmailConfirmation:
		if state.Draft == nil {
			state.Reset()
			break
		}
		switch {
		case yesRe.MatchString(turn.Message):
			return a.sendDraft(ctx, turn, state)
		case noRe.MatchString(turn.Message):
			state.Reset()
			return &Response{Reply: "🛑 No problem, I won't send it.", Intent: IntentSendEmail}
		case editRe.MatchString(turn.Message):
			return a.editDraft(ctx, turn, state, history)
		}
		// Anything else abandons the draft.
		state.Reset()
	case domain.StateAwaitingEventDetails:
		if state.PendingEvent == nil {
			state.Reset()
			break
		}
		if resp, ok := a.completePendingEvent(ctx, turn, state); ok {
			return resp
		}
		state.Reset()
	}

	class, source := a.classifier.Classify(ctx, turn.Message)
	a.log.Debug().Str("intent", string(class.Type)).Str("source", source).Float64("confidence", class.Confidence).Msg("classified message")

	var resp *Response
	switch class.Type {
	case IntentSendEmail:
		resp = a.composeEmail(ctx, turn, state, history)
	case IntentEmailQuestion:
		resp = a.answerQuestion(ctx, turn, history)
	case IntentAddEvent:
		resp = a.createEvent(ctx, turn, state)
	default:
		resp = a.chat(ctx, turn, history)
	}
	resp.Intent = class.Type
	return resp
}

func (a *agentUsecase) generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	if a.gen == nil {
		return "", ai.ErrNoProvider
	}
	out, err := a.gen.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (a *agentUsecase) History(ctx context.Context, sessionID string) ([]domain.ChatTurn, error) {
	return a.historyRepo.Recent(sessionID, domain.MaxHistory)
}

func (a *agentUsecase) ClearHistory(ctx context.Context, sessionID string) error {
	mu := a.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := a.historyRepo.Clear(sessionID); err != nil {
		return errors.Wrap(err, "clear history")
	}
	return errors.Wrap(a.sessionRepo.Delete(sessionID), "clear session state")
}

func (a *agentUsecase) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return a.historyRepo.DeleteCreatedBefore(now.Add(-HistoryTTL))
}
