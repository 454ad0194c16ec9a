package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	agentrepo "ema-backend/internal/agent/repository"
	agentusecase "ema-backend/internal/agent/usecase"
	authdelivery "ema-backend/internal/auth/delivery"
	authrepo "ema-backend/internal/auth/repository"
	authusecase "ema-backend/internal/auth/usecase"
	cacherepo "ema-backend/internal/cache/repository"
	calendardelivery "ema-backend/internal/calendar/delivery"
	calendarrepo "ema-backend/internal/calendar/repository"
	calendarusecase "ema-backend/internal/calendar/usecase"
	coorddelivery "ema-backend/internal/coordinator/delivery"
	"ema-backend/internal/coordinator/registry"
	"ema-backend/internal/coordinator/scheduler"
	coordusecase "ema-backend/internal/coordinator/usecase"
	emaildelivery "ema-backend/internal/email/delivery"
	emailrepo "ema-backend/internal/email/repository"
	emailusecase "ema-backend/internal/email/usecase"
	"ema-backend/internal/notification"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/chroma"
	"ema-backend/pkg/config"
	"ema-backend/pkg/crypto"
	"ema-backend/pkg/kvcache"
	"ema-backend/pkg/logger"
	"ema-backend/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	fastCacheSize    = 1024
	fastCacheTTL     = 7 * 24 * time.Hour
	bootstrapTimeout = 5 * time.Minute
)

type Handler struct {
	cfg *config.Config
	log zerolog.Logger

	sseManager    *sse.Manager
	settings      *RuntimeSettings
	authUsecase   authusecase.AuthUsecase
	emailUsecase  emailusecase.EmailUsecase
	coordinator   coordusecase.Coordinator
	summaryWorker *emailusecase.SummaryWorkerService
	scheduler     *scheduler.MaintenanceScheduler
	notifier      *notification.Service

	authHandler   *authdelivery.AuthHandler
	emailHandler  *emaildelivery.EmailHandler
	eventHandler  *calendardelivery.EventHandler
	actionHandler *coorddelivery.ActionHandler
}

// NewHandler wires every usecase over db. Optional integrations (AI, Chroma,
// Pub/Sub) that fail to initialize are logged and left out.
func NewHandler(ctx context.Context, cfg *config.Config, db *gorm.DB, log zerolog.Logger) (*Handler, error) {
	log = logger.Component(log, "Handler")
	loc := cfg.Location()

	sealer := crypto.NewSealer(cfg.TokenSealKey)
	fast := kvcache.New(fastCacheSize, fastCacheTTL)

	accountRepo := authrepo.NewAccountRepository(db)
	cacheRepo := cacherepo.NewCacheRepository(db)
	emailRepository := emailrepo.NewEmailRepository(db)
	contactRepo := emailrepo.NewContactRepository(db)
	summaryRepo := emailrepo.NewEmailSummaryRepository(db)
	syncHistoryRepo := emailrepo.NewEmailSyncHistoryRepository(db)
	eventRepo := calendarrepo.NewGormEventRepository(db)
	historyRepo := agentrepo.NewHistoryRepository(db)
	sessionRepo := agentrepo.NewSessionRepository(db)

	sseManager := sse.NewManager()
	go sseManager.Run()

	settings := NewRuntimeSettings(cfg.OllamaBaseURL, cfg.OllamaModel)
	settings.SetPinger(ai.NewOllamaServiceWithGetters(settings.BaseURL, settings.Model))

	// Generators read the Ollama endpoint through the runtime settings.
	aiService, err := ai.NewTextGenerator(ctx, ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiApiKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: settings.BaseURL,
		GetOllamaModel:   settings.Model,
	}, log)
	if err != nil {
		log.Warn().Err(err).Msg("AI service unavailable, falling back to rule-based behavior")
	} else {
		log.Info().Str("provider", cfg.AIProvider).Msg("AI service initialized")
	}

	connector := authusecase.NewConnector(accountRepo, sealer, cfg, log)
	authUc := authusecase.NewAuthUsecase(accountRepo, sealer, cfg, log)

	emailUc := emailusecase.NewEmailUsecase(emailRepository, contactRepo, summaryRepo, syncHistoryRepo, cacheRepo, fast, connector, cfg.CacheLookupTimeout, log)
	eventsUc := calendarusecase.NewEventsUsecase(eventRepo, cacheRepo, fast, connector, loc, log)
	eventsUc.SetEventService(sseManager)
	agentUc := agentusecase.NewAgentUsecase(historyRepo, sessionRepo, cacheRepo, emailUc, eventsUc, loc, log)

	summaryWorker := emailusecase.NewSummaryWorkerService(summaryRepo, aiService, sseManager, cfg.SummaryWorkers, log)
	summaryWorker.Start()
	emailUc.SetSummaryWorker(summaryWorker)

	if aiService != nil {
		emailUc.SetAIService(aiService)
		eventsUc.SetAIService(aiService)
		agentUc.SetAIService(aiService)
	}

	if cfg.ChromaAPIKey != "" {
		chromaClient, err := chroma.NewChromaClient(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Chroma unavailable, questions use keyword ranking")
		} else {
			emailUc.SetVectorIndex(chromaClient)
			log.Info().Msg("Chroma client initialized")
		}
	}

	coord := coordusecase.NewCoordinator(registry.New(), emailUc, eventsUc, agentUc, connector, []coordusecase.Sweeper{cacheRepo}, log)

	h := &Handler{
		cfg:           cfg,
		log:           log,
		sseManager:    sseManager,
		settings:      settings,
		authUsecase:   authUc,
		emailUsecase:  emailUc,
		coordinator:   coord,
		summaryWorker: summaryWorker,
		scheduler:     scheduler.NewMaintenanceScheduler(coord, cfg.MaintenanceInterval, log),
		authHandler:   authdelivery.NewAuthHandler(authUc),
		emailHandler:  emaildelivery.NewEmailHandler(emailUc),
		eventHandler:  calendardelivery.NewEventHandler(eventsUc),
		actionHandler: coorddelivery.NewActionHandler(coord),
	}
	h.authHandler.SetSignInHook(h.onSignIn)

	if cfg.GoogleProjectID != "" {
		watchers := func(ctx context.Context, accountID string) (notification.Watcher, error) {
			svc, err := connector.Gmail(ctx, accountID)
			if err != nil {
				return nil, err
			}
			return svc, nil
		}
		notifier, err := notification.NewService(ctx, cfg.GoogleProjectID, topicShortName(cfg.GooglePubSubTopic), cfg.GoogleCredentials,
			accountRepo, emailUc, eventsUc, sseManager, watchers, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize notification service")
		} else {
			h.notifier = notifier
		}
	} else {
		log.Warn().Msg("GOOGLE_PROJECT_ID not configured, push notifications disabled")
	}

	return h, nil
}

// topicShortName accepts either "name" or "projects/p/topics/name".
func topicShortName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		topic = parts[len(parts)-1]
	}
	if topic == "" {
		return "gmail-updates"
	}
	return topic
}

// onSignIn warms the caches for a fresh session and subscribes the mailbox
// to push notifications.
func (h *Handler) onSignIn(accountID, sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
		defer cancel()

		reg := h.coordinator.Registry()
		id := "bootstrap-" + sessionID
		tok := reg.Register(id, "bootstrap")
		defer reg.Release(id, tok)

		caller := coordusecase.Caller{AccountID: accountID, SessionID: sessionID}
		if _, err := h.coordinator.Bootstrap(ctx, caller, tok); err != nil && !errors.Is(err, registry.ErrCancelled) {
			h.log.Warn().Err(err).Str("account", accountID).Msg("Bootstrap after sign-in failed")
		}

		if h.notifier != nil {
			if err := h.notifier.WatchAccount(ctx, accountID); err != nil {
				h.log.Warn().Err(err).Str("account", accountID).Msg("Failed to watch mailbox")
			}
		}
	}()
}

// Coordinator exposes the action dispatcher to the CLI commands.
func (h *Handler) Coordinator() coordusecase.Coordinator {
	return h.coordinator
}

// RunBackground starts the maintenance scheduler and the push listener.
func (h *Handler) RunBackground(ctx context.Context) {
	h.scheduler.Start()
	if h.notifier != nil {
		go h.notifier.Start(ctx)
	}
}

// Close stops background work in reverse start order.
func (h *Handler) Close() {
	h.scheduler.Stop()
	if h.notifier != nil {
		if err := h.notifier.Close(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to close notification service")
		}
	}
	h.summaryWorker.Stop()
	h.emailUsecase.Stop()
	h.sseManager.Close()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())
	SetupRoutes(r, h)
	return r
}

// Start serves HTTP on addr until ctx is done, then shuts down gracefully.
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Router()}

	errCh := make(chan error, 1)
	go func() {
		h.log.Info().Str("addr", addr).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
