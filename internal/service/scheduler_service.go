package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SchedulerService wraps cron-based housekeeping jobs.
type SchedulerService struct {
	cron *cron.Cron
	log  *logrus.Logger
}

func NewSchedulerService(loc *time.Location, log *logrus.Logger) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		log:  log,
	}
}

// ScheduleInterval registers a periodic job. Each run gets its own context
// bounded by timeout; errors are logged under name.
func (s *SchedulerService) ScheduleInterval(name string, interval, timeout time.Duration, job func(ctx context.Context) error) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithField("job", name).WithError(err).Error("scheduled job failed")
		}
	})
}

// ScheduleSessionSweep runs SweepExpired every interval.
func (s *SchedulerService) ScheduleSessionSweep(sessions *SessionService, interval time.Duration) (cron.EntryID, error) {
	return s.ScheduleInterval("session-sweep", interval, 30*time.Second, func(ctx context.Context) error {
		_, err := sessions.SweepExpired(ctx)
		return err
	})
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
