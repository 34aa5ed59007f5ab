package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"todo-assistant/internal/model"
)

func createWebTask(t *testing.T, f *fixture, title, description string) *model.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(context.Background(), TaskInput{Title: title, Description: description, Source: model.SourceWeb})
	require.NoError(t, err)
	return task
}

func TestEnhanceSuccess(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{result: EnrichResult{
		EnhancedDescription: "Plan the trip in detail",
		EnhancementSteps:    []string{"Pick dates", "Book hotel"},
	}}
	enhancer := f.enhancer(enricher, time.Second)
	task := createWebTask(t, f, "Plan trip", "Lisbon")

	enhanced, err := enhancer.Enhance(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, enhanced.Enhanced)
	assert.False(t, enhanced.IsEnhancing)
	assert.Equal(t, "Plan the trip in detail", *enhanced.EnhancedDescription)
	assert.Equal(t, []string{"Pick dates", "Book hotel"}, enhanced.Steps())

	require.Equal(t, 1, enricher.Calls())
	assert.Equal(t, EnrichRequest{TaskID: task.ID, Title: "Plan trip", Description: "Lisbon"}, enricher.calls[0])
}

func TestEnhanceShowsInFlightFlag(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{
		result:  EnrichResult{EnhancedDescription: "done"},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	enhancer := f.enhancer(enricher, 5*time.Second)
	task := createWebTask(t, f, "Clean garage", "")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := enhancer.Enhance(ctx, task.ID)
		done <- err
	}()

	<-enricher.started
	inFlight, err := f.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, inFlight.IsEnhancing)
	assert.False(t, inFlight.Enhanced)

	close(enricher.gate)
	require.NoError(t, <-done)

	final, err := f.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, final.IsEnhancing)
	assert.True(t, final.Enhanced)
}

func TestEnhanceMissingTask(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{}
	enhancer := f.enhancer(enricher, time.Second)

	_, err := enhancer.Enhance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Zero(t, enricher.Calls())
}

func TestEnhanceWithoutAgentLeavesTaskUntouched(t *testing.T) {
	f := newFixture(t)
	enhancer := f.enhancer(nil, time.Second)
	task := createWebTask(t, f, "Read book", "")

	_, err := enhancer.Enhance(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrAgentNotConfigured)

	stored, err := f.tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsEnhancing)
}

func TestEnhanceFailureClearsFlagAndKeepsPriorResult(t *testing.T) {
	cases := map[string]*fakeEnricher{
		"agent error":       {err: errors.New("503 from workflow")},
		"empty description": {result: EnrichResult{EnhancedDescription: "  "}},
	}
	for name, enricher := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			enhancer := f.enhancer(enricher, time.Second)
			ctx := context.Background()
			task := createWebTask(t, f, "Fix bike", "flat tyre")

			_, err := f.tasks.UpdateTask(ctx, task.ID, model.TaskPatch{
				Enhanced:            boolPtr(true),
				EnhancedDescription: strPtr("old result"),
				EnhancementSteps:    &[]string{"old step"},
			})
			require.NoError(t, err)

			_, err = enhancer.Enhance(ctx, task.ID)
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)

			stored, err := f.tasks.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.False(t, stored.IsEnhancing)
			assert.True(t, stored.Enhanced)
			assert.Equal(t, "old result", *stored.EnhancedDescription)
			assert.Equal(t, []string{"old step"}, stored.Steps())
		})
	}
}

func TestEnhanceClearsFlagWhenResultWriteFails(t *testing.T) {
	f := newFixture(t)
	enhancer := f.enhancer(&fakeEnricher{result: EnrichResult{
		EnhancedDescription: "Pump the tyre",
		EnhancementSteps:    []string{"find pump"},
	}}, time.Second)
	ctx := context.Background()
	task := createWebTask(t, f, "Fix bike", "flat tyre")

	err := f.db.Callback().Update().Before("gorm:update").Register("test:fail_result_write", func(tx *gorm.DB) {
		if columns, ok := tx.Statement.Dest.(map[string]interface{}); ok {
			if _, ok := columns["enhanced_description"]; ok {
				tx.AddError(errors.New("disk I/O error"))
			}
		}
	})
	require.NoError(t, err)

	_, err = enhancer.Enhance(ctx, task.ID)
	require.Error(t, err)

	stored, err := f.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsEnhancing)
	assert.False(t, stored.Enhanced)
}

func TestEnhanceTimeoutClearsFlag(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{gate: make(chan struct{})}
	enhancer := f.enhancer(enricher, 20*time.Millisecond)
	task := createWebTask(t, f, "Slow agent", "")

	_, err := enhancer.Enhance(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	stored, err := f.tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsEnhancing)
	assert.False(t, stored.Enhanced)
}

func TestDispatchSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{
		result: EnrichResult{EnhancedDescription: "detached"},
		gate:   make(chan struct{}),
	}
	enhancer := f.enhancer(enricher, 5*time.Second)
	task := createWebTask(t, f, "Background", "")

	ctx, cancel := context.WithCancel(context.Background())
	flagged, err := enhancer.Dispatch(ctx, *task)
	require.NoError(t, err)
	assert.True(t, flagged.IsEnhancing)

	cancel()
	close(enricher.gate)
	enhancer.Wait()

	stored, err := f.tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Enhanced)
	assert.False(t, stored.IsEnhancing)
}

func TestDeleteDuringEnhancementDropsResult(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{
		result:  EnrichResult{EnhancedDescription: "too late"},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	enhancer := f.enhancer(enricher, 5*time.Second)
	ctx := context.Background()

	task, err := f.tasks.CreateTask(ctx, TaskInput{Title: "Ephemeral", Source: model.SourceWhatsApp})
	require.NoError(t, err)
	<-enricher.started

	require.NoError(t, f.tasks.DeleteTask(ctx, task.ID))
	close(enricher.gate)
	enhancer.Wait()

	_, err = f.tasks.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
