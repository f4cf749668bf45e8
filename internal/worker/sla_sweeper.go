package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BreachSweeper is the part of the ticket service the sweeper drives.
type BreachSweeper interface {
	SweepBreaches(ctx context.Context, batch int) (int, error)
}

// SLASweeper periodically latches the breach flag on overdue tickets, so a
// ticket nobody touches still shows as breached.
type SLASweeper struct {
	mu       sync.Mutex
	cron     *cron.Cron
	tickets  BreachSweeper
	schedule string
	batch    int
	timeout  time.Duration
	logger   *zap.Logger
	running  bool
}

// NewSLASweeper builds a sweeper. schedule is a 5-field cron expression or a
// descriptor such as "@every 1m".
func NewSLASweeper(tickets BreachSweeper, schedule string, batch int, logger *zap.Logger) *SLASweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLASweeper{
		cron:     cron.New(),
		tickets:  tickets,
		schedule: schedule,
		batch:    batch,
		timeout:  time.Minute,
		logger:   logger,
	}
}

// Start registers the job and runs the scheduler. Blocks until ctx is cancelled.
func (s *SLASweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("sla sweeper: invalid schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("sla sweeper started", zap.String("schedule", s.schedule))

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("sla sweeper stopped")
	return ctx.Err()
}

// RunOnce performs one sweep. Overlapping runs are skipped.
func (s *SLASweeper) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("sla sweep still running; skipping tick")
		return 0
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	flipped, err := s.tickets.SweepBreaches(ctx, s.batch)
	if err != nil {
		s.logger.Warn("sla sweep failed", zap.Int("flipped", flipped), zap.Error(err))
		return flipped
	}
	if flipped > 0 {
		s.logger.Info("sla breaches recorded", zap.Int("count", flipped))
	}
	return flipped
}
