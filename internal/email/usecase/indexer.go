package usecase

import (
	"context"
	"sync"
	"time"

	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/internal/email/repository"
	"ema-backend/pkg/logger"

	"github.com/rs/zerolog"
)

type indexJob struct {
	AccountID string
	Email     *emaildomain.Email
}

// indexWorker pushes stored emails into the semantic index once each.
type indexWorker struct {
	index       VectorIndex
	syncHistory repository.EmailSyncHistoryRepository
	log         zerolog.Logger
	jobs        chan indexJob
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

func newIndexWorker(index VectorIndex, syncHistory repository.EmailSyncHistoryRepository, log zerolog.Logger) *indexWorker {
	return &indexWorker{
		index:       index,
		syncHistory: syncHistory,
		log:         logger.Component(log, "VectorSync"),
		jobs:        make(chan indexJob, 1000),
	}
}

func (w *indexWorker) Start(workers int) {
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

func (w *indexWorker) Stop() {
	w.closeOnce.Do(func() { close(w.jobs) })
	w.wg.Wait()
}

// Queue drops the job when the queue is full; the next fetch retries it.
func (w *indexWorker) Queue(job indexJob) {
	select {
	case w.jobs <- job:
	default:
		w.log.Warn().Str("email_id", job.Email.ID).Msg("index queue full")
	}
}

func (w *indexWorker) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		w.process(job)
	}
}

func (w *indexWorker) process(job indexJob) {
	synced, err := w.syncHistory.IsEmailSynced(job.AccountID, job.Email.ID)
	if err != nil {
		w.log.Warn().Err(err).Msg("error checking sync status")
		return
	}
	if synced {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	e := job.Email
	if err := w.index.UpsertEmail(ctx, job.AccountID, e.ID, e.From, e.Subject, e.Text()); err != nil {
		w.log.Warn().Err(err).Str("email_id", e.ID).Msg("failed to index email")
		return
	}
	if _, err := w.syncHistory.EnsureEmailSynced(job.AccountID, e.ID); err != nil {
		w.log.Warn().Err(err).Msg("failed to record sync")
	}
}
