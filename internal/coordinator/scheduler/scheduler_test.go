package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMaintainer struct {
	sweeps atomic.Int32
	syncs  atomic.Int32
}

func (m *countingMaintainer) Sweep(ctx context.Context) int64 {
	m.sweeps.Add(1)
	return 0
}

func (m *countingMaintainer) SyncAll(ctx context.Context) int {
	m.syncs.Add(1)
	return 0
}

func TestSchedulerSweepsAndSyncs(t *testing.T) {
	m := &countingMaintainer{}
	s := NewMaintenanceScheduler(m, 5*time.Millisecond, zerolog.Nop())
	s.Start()

	require.Eventually(t, func() bool { return m.syncs.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	// One sweep at start plus one per tick; a sync needs SyncEvery ticks.
	assert.GreaterOrEqual(t, m.sweeps.Load(), int32(SyncEvery+1))
	assert.LessOrEqual(t, m.syncs.Load(), (m.sweeps.Load()-1)/SyncEvery)
}

func TestStopWithoutStart(t *testing.T) {
	s := NewMaintenanceScheduler(&countingMaintainer{}, time.Hour, zerolog.Nop())
	s.Stop()
}
