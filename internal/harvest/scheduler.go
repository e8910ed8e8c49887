package harvest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/stats"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// Scheduler harvests the day lagDays before today on a cron schedule.
// Archives publish a day only after it is complete, hence the lag.
type Scheduler struct {
	harvester *Harvester
	schedule  string
	lagDays   int
	cron      *cron.Cron
	logger    *logger.Logger
	now       func() time.Time

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewScheduler validates schedule, a standard five field cron expression
// or descriptor such as "@daily"
func NewScheduler(h *Harvester, schedule string, lagDays int, log *logger.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, apperr.Config("harvest schedule", "%q: %v", schedule, err)
	}
	if lagDays < 0 {
		return nil, apperr.Config("harvest lag days", "must not be negative, got %d", lagDays)
	}

	return &Scheduler{
		harvester: h,
		schedule:  schedule,
		lagDays:   lagDays,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		logger:    log.Named("harvest-scheduler"),
		now:       time.Now,
	}, nil
}

// Target returns the day harvested by a run at now
func (s *Scheduler) Target(now time.Time) time.Time {
	return stats.Day(now.UTC()).AddDate(0, 0, -s.lagDays)
}

// Start registers the cron job and starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(s.schedule, s.runOnce); err != nil {
		s.cancel()
		return apperr.Config("harvest schedule", "%q: %v", s.schedule, err)
	}
	s.cron.Start()

	s.logger.Info("Started harvest scheduler",
		logger.String("schedule", s.schedule),
		logger.Int("lag_days", s.lagDays))

	s.started = true
	return nil
}

// Stop cancels a running harvest and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info("Stopping harvest scheduler")
	s.cancel()
	<-s.cron.Stop().Done()

	s.started = false
	s.logger.Info("Harvest scheduler stopped")
}

func (s *Scheduler) runOnce() {
	day := s.Target(s.now())

	summary, err := s.harvester.Harvest(s.ctx, []time.Time{day})
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Warn("Skipping scheduled harvest, another harvest is running",
			logger.String("date", day.Format(stats.DateLayout)))
	case err != nil:
		s.logger.Error("Scheduled harvest failed",
			logger.String("date", day.Format(stats.DateLayout)),
			logger.Error(err))
	default:
		s.logger.Info("Scheduled harvest finished",
			logger.String("date", day.Format(stats.DateLayout)),
			logger.Int("snapshots", summary.Snapshots))
	}
}
