package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	authdomain "ema-backend/internal/auth/domain"
	calendardomain "ema-backend/internal/calendar/domain"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on a mailbox change.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// AccountStore finds accounts and records the last processed history id.
type AccountStore interface {
	FindByEmail(email string) (*authdomain.Account, error)
	FindByID(id string) (*authdomain.Account, error)
	Update(account *authdomain.Account) error
}

// Mail fetches and stores new messages; storing also indexes them when a
// vector index is configured.
type Mail interface {
	FetchEmails(ctx context.Context, accountID string, filter emaildomain.Filter, tok registry.Token) ([]*emaildomain.Email, error)
}

// Events runs incremental extraction over freshly fetched mail.
type Events interface {
	ExtractCalendarEvents(ctx context.Context, accountID string, emails []*emaildomain.Email, forceRefresh bool, tok registry.Token) ([]*calendardomain.CalendarEvent, error)
}

// Watcher registers a mailbox for push notifications.
type Watcher interface {
	Watch(ctx context.Context, topicName string) (uint64, error)
}

// WatcherFactory opens a Watcher for an account.
type WatcherFactory func(ctx context.Context, accountID string) (Watcher, error)

// Pusher delivers live updates to the extension.
type Pusher interface {
	Send(key, event string, data interface{})
}

// newMailFilter is what a push notification refreshes: the last week of
// the inbox, read and unread.
var newMailFilter = emaildomain.Filter{Time: emaildomain.TimeWeek, Read: emaildomain.ReadAll}

type Service struct {
	pubsubClient *pubsub.Client
	accounts     AccountStore
	mail         Mail
	events       Events
	pusher       Pusher
	watchers     WatcherFactory
	log          zerolog.Logger

	topicName string
	fullTopic string
	subName   string

	// Serializes notifications per account so history ids are compared
	// against the latest stored value.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, accounts AccountStore, mail Mail, events Events, pusher Pusher, watchers WatcherFactory, log zerolog.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	s := newService(accounts, mail, events, pusher, watchers, log)
	s.pubsubClient = client
	s.topicName = topicName
	s.fullTopic = fmt.Sprintf("projects/%s/topics/%s", projectID, topicName)
	// Convention: topic-sub
	s.subName = topicName + "-sub"
	return s, nil
}

func newService(accounts AccountStore, mail Mail, events Events, pusher Pusher, watchers WatcherFactory, log zerolog.Logger) *Service {
	return &Service{
		accounts: accounts,
		mail:     mail,
		events:   events,
		pusher:   pusher,
		watchers: watchers,
		log:      logger.Component(log, "PubSub"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Start blocks receiving notifications until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.log.Info().Str("topic", s.topicName).Str("subscription", s.subName).Msg("starting notification service")

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("error checking subscription existence")
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("error checking topic existence")
			return
		}
		if !topicExists {
			s.log.Error().Str("topic", s.topicName).Msg("topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			s.log.Error().Err(err).Msg("failed to create subscription")
			return
		}
		s.log.Info().Str("subscription", s.subName).Msg("created subscription")
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.HandleNotification(ctx, msg.Data); err != nil {
			s.log.Warn().Err(err).Msg("notification not processed")
		}
		msg.Ack()
	})
	if err != nil {
		s.log.Error().Err(err).Msg("error receiving messages")
	}
}

// Close releases the Pub/Sub client.
func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}

// WatchAccount registers the account's inbox with the push topic and
// records the starting history id.
func (s *Service) WatchAccount(ctx context.Context, accountID string) error {
	w, err := s.watchers(ctx, accountID)
	if err != nil {
		return err
	}
	historyID, err := w.Watch(ctx, s.fullTopic)
	if err != nil {
		return err
	}

	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := s.accounts.FindByID(accountID)
	if err != nil || account == nil {
		return fmt.Errorf("account %s not found: %v", accountID, err)
	}
	if historyID > account.HistoryID {
		account.HistoryID = historyID
		return s.accounts.Update(account)
	}
	return nil
}

func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	return l
}

// HandleNotification refreshes the account named in a Gmail notification.
// Notifications at or below the last processed history id are skipped.
func (s *Service) HandleNotification(ctx context.Context, data []byte) error {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	account, err := s.accounts.FindByEmail(n.EmailAddress)
	if err != nil {
		return fmt.Errorf("error finding account %s: %w", n.EmailAddress, err)
	}
	if account == nil {
		s.log.Debug().Str("email", n.EmailAddress).Msg("notification for unknown account")
		return nil
	}

	lock := s.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; another notification may have advanced it.
	if fresh, err := s.accounts.FindByID(account.ID); err == nil && fresh != nil {
		account = fresh
	}
	if n.HistoryID <= account.HistoryID {
		s.log.Debug().Str("account", account.ID).Uint64("historyId", n.HistoryID).Uint64("last", account.HistoryID).Msg("skipping duplicate notification")
		return nil
	}
	account.HistoryID = n.HistoryID
	if err := s.accounts.Update(account); err != nil {
		return fmt.Errorf("failed to record history id: %w", err)
	}

	emails, err := s.mail.FetchEmails(ctx, account.ID, newMailFilter, registry.None)
	if err != nil {
		return fmt.Errorf("failed to fetch new mail: %w", err)
	}
	if _, err := s.events.ExtractCalendarEvents(ctx, account.ID, emails, false, registry.None); err != nil {
		s.log.Warn().Err(err).Str("account", account.ID).Msg("event extraction after push failed")
	}

	s.pusher.Send(account.ID, "email_update", map[string]interface{}{
		"email":     n.EmailAddress,
		"historyId": n.HistoryID,
		"count":     len(emails),
		"timestamp": time.Now(),
	})
	return nil
}
