package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleIntervalRejectsNonPositive(t *testing.T) {
	s := NewSchedulerService(time.UTC, testLogger())

	_, err := s.ScheduleInterval("noop", 0, time.Second, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduledJobRuns(t *testing.T) {
	s := NewSchedulerService(time.UTC, testLogger())
	ran := make(chan struct{}, 1)

	_, err := s.ScheduleInterval("tick", time.Second, time.Second, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
