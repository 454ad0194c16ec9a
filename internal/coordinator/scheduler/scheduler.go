package scheduler

import (
	"context"
	"time"

	"ema-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// SyncEvery is how many sweep ticks pass between calendar reconciliations.
const SyncEvery = 6

// Maintainer is the work the scheduler drives.
type Maintainer interface {
	Sweep(ctx context.Context) int64
	SyncAll(ctx context.Context) int
}

// MaintenanceScheduler sweeps expired records every interval and
// reconciles every account's calendar every SyncEvery intervals.
type MaintenanceScheduler struct {
	target   Maintainer
	interval time.Duration
	log      zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
	started  bool
}

func NewMaintenanceScheduler(target Maintainer, interval time.Duration, log zerolog.Logger) *MaintenanceScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &MaintenanceScheduler{
		target:   target,
		interval: interval,
		log:      logger.Component(log, "MaintenanceScheduler"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *MaintenanceScheduler) Start() {
	s.log.Info().Dur("interval", s.interval).Msg("starting maintenance scheduler")
	s.started = true

	go func() {
		defer close(s.done)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-s.stopChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		// Run immediately on start
		s.target.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		ticks := 0
		for {
			select {
			case <-ticker.C:
				ticks++
				s.tick(ctx, ticks)
			case <-s.stopChan:
				s.log.Info().Msg("maintenance scheduler stopped")
				return
			}
		}
	}()
}

func (s *MaintenanceScheduler) tick(ctx context.Context, ticks int) {
	s.target.Sweep(ctx)
	if ticks%SyncEvery == 0 {
		n := s.target.SyncAll(ctx)
		s.log.Info().Int("corrected", n).Msg("scheduled calendar sync finished")
	}
}

// Stop gracefully stops the scheduler and waits for the running pass.
func (s *MaintenanceScheduler) Stop() {
	close(s.stopChan)
	if s.started {
		<-s.done
	}
}
