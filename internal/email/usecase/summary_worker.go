package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/internal/email/repository"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/logger"

	"github.com/rs/zerolog"
)

const emailSummaryPrompt = `Summarize this email in one or two short sentences. State only the main point and any action requested. Do not add commentary.

%s`

// GenerateEmailSummary produces a short summary of one email.
func GenerateEmailSummary(ctx context.Context, gen ai.TextGenerator, subject, body string) (string, error) {
	if gen == nil {
		return "", ai.ErrNoProvider
	}
	emailText := fmt.Sprintf("Subject: %s\n\nBody: %s", subject, body)
	if len(emailText) > 5000 {
		emailText = emailText[:5000]
	}
	summary, err := gen.Generate(ctx, fmt.Sprintf(emailSummaryPrompt, emailText), ai.GenerateOptions{Temperature: 0.2, MaxOutputTokens: 120})
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}
	return summary, nil
}

// SummaryJob is one email waiting for a background summary.
type SummaryJob struct {
	AccountID string
	EmailID   string
	Subject   string
	Body      string
}

// SummaryWorkerService generates per-email summaries in the background and
// pushes each result as a summary_update event.
type SummaryWorkerService struct {
	summaryRepo  repository.EmailSummaryRepository
	aiService    ai.TextGenerator
	eventService EventService
	log          zerolog.Logger
	jobQueue     chan SummaryJob
	workerWg     sync.WaitGroup
	workerCount  int
	started      bool
	mu           sync.Mutex
}

func NewSummaryWorkerService(
	summaryRepo repository.EmailSummaryRepository,
	aiService ai.TextGenerator,
	eventService EventService,
	workerCount int,
	log zerolog.Logger,
) *SummaryWorkerService {
	if workerCount <= 0 {
		workerCount = 3
	}

	return &SummaryWorkerService{
		summaryRepo:  summaryRepo,
		aiService:    aiService,
		eventService: eventService,
		log:          logger.Component(log, "SummaryWorker"),
		jobQueue:     make(chan SummaryJob, 500),
		workerCount:  workerCount,
	}
}

func (s *SummaryWorkerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	for i := 0; i < s.workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(i)
	}
	s.started = true
	s.log.Info().Int("workers", s.workerCount).Msg("started")
}

// Stop closes the queue and waits for in-flight jobs.
func (s *SummaryWorkerService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.jobQueue)
	s.workerWg.Wait()
	s.log.Info().Msg("all workers stopped")
}

func (s *SummaryWorkerService) worker(id int) {
	defer s.workerWg.Done()

	for job := range s.jobQueue {
		s.processJob(job)
	}
	s.log.Debug().Int("worker", id).Msg("stopped")
}

func (s *SummaryWorkerService) processJob(job SummaryJob) {
	existing, err := s.summaryRepo.GetSummary(job.AccountID, job.EmailID)
	if err != nil {
		s.log.Warn().Err(err).Msg("error checking cache")
		return
	}
	if existing != nil {
		s.sendSummaryUpdate(job.AccountID, job.EmailID, existing.Summary)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	summary, err := GenerateEmailSummary(ctx, s.aiService, job.Subject, job.Body)
	if err != nil {
		s.log.Warn().Err(err).Str("email_id", job.EmailID).Msg("AI error")
		return
	}

	if err := s.summaryRepo.SaveSummary(job.AccountID, job.EmailID, summary); err != nil {
		s.log.Warn().Err(err).Msg("save error")
		return
	}
	s.sendSummaryUpdate(job.AccountID, job.EmailID, summary)
}

func (s *SummaryWorkerService) sendSummaryUpdate(accountID, emailID, summary string) {
	if s.eventService == nil {
		return
	}
	s.eventService.Send(accountID, "summary_update", map[string]interface{}{
		"email_id": emailID,
		"summary":  summary,
	})
}

// QueueJob adds a job without blocking. It reports false when the queue is full.
func (s *SummaryWorkerService) QueueJob(job SummaryJob) bool {
	select {
	case s.jobQueue <- job:
		return true
	default:
		return false
	}
}

// QueueEmailsForSummary returns the summaries already cached and queues
// the rest for background processing.
func (s *SummaryWorkerService) QueueEmailsForSummary(accountID string, emails []*emaildomain.Email) (map[string]string, int, error) {
	if len(emails) == 0 {
		return map[string]string{}, 0, nil
	}

	emailIDs := make([]string, len(emails))
	for i, email := range emails {
		emailIDs[i] = email.ID
	}

	cachedSummaries, err := s.summaryRepo.GetSummaries(accountID, emailIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get cached summaries: %w", err)
	}

	queuedCount := 0
	for _, email := range emails {
		if _, hasCached := cachedSummaries[email.ID]; hasCached {
			continue
		}
		job := SummaryJob{
			AccountID: accountID,
			EmailID:   email.ID,
			Subject:   email.Subject,
			Body:      email.Text(),
		}
		if s.QueueJob(job) {
			queuedCount++
		}
	}

	return cachedSummaries, queuedCount, nil
}
