package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-assistant/internal/feed"
	"todo-assistant/internal/model"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateTaskRejectsBlankTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tasks.CreateTask(ctx, TaskInput{Title: "   ", Source: model.SourceWeb})
	require.Error(t, err)
	assert.True(t, isValidation(err))

	tasks, err := f.tasks.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Empty(t, f.publisher.Types())
}

func TestCreateTaskRejectsUnknownSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.tasks.CreateTask(context.Background(), TaskInput{Title: "Call mom", Source: "fax"})
	require.Error(t, err)
	assert.True(t, isValidation(err))
}

func TestCreateWebTaskDefaults(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{result: EnrichResult{EnhancedDescription: "x"}}
	enhancer := f.enhancer(enricher, time.Second)

	task, err := f.tasks.CreateTask(context.Background(), TaskInput{Title: "  Write report ", Description: " draft ", Source: model.SourceWeb})
	require.NoError(t, err)
	enhancer.Wait()

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, "draft", task.Description)
	assert.False(t, task.IsCompleted)
	assert.False(t, task.Enhanced)
	assert.False(t, task.IsEnhancing)
	assert.Nil(t, task.EnhancedDescription)
	assert.Nil(t, task.Steps())
	assert.True(t, f.clock.Now().Equal(task.CreatedAt))

	assert.Zero(t, enricher.Calls(), "web tasks are not enhanced automatically")
	assert.Equal(t, []feed.EventType{feed.EventInsert}, f.publisher.Types())
}

func TestCreateWhatsAppTaskEnhancesInBackground(t *testing.T) {
	f := newFixture(t)
	enricher := &fakeEnricher{result: EnrichResult{
		EnhancedDescription: "Buy 1L whole milk at the corner store",
		EnhancementSteps:    []string{"Check fridge", "Go to store", "Buy milk"},
	}}
	enhancer := f.enhancer(enricher, time.Second)
	ctx := context.Background()

	task, err := f.tasks.CreateTask(ctx, TaskInput{Title: "Buy milk", Source: model.SourceWhatsApp})
	require.NoError(t, err)
	assert.True(t, task.IsEnhancing)
	assert.False(t, task.Enhanced)

	enhancer.Wait()

	stored, err := f.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Enhanced)
	assert.False(t, stored.IsEnhancing)
	require.NotNil(t, stored.EnhancedDescription)
	assert.Equal(t, "Buy 1L whole milk at the corner store", *stored.EnhancedDescription)
	assert.Equal(t, []string{"Check fridge", "Go to store", "Buy milk"}, stored.Steps())
	assert.Equal(t, model.SourceWhatsApp, stored.Source)
}

func TestCreateWhatsAppTaskWithoutAgent(t *testing.T) {
	f := newFixture(t)
	f.enhancer(nil, time.Second)

	task, err := f.tasks.CreateTask(context.Background(), TaskInput{Title: "Buy milk", Source: model.SourceWhatsApp})
	require.NoError(t, err)
	assert.False(t, task.IsEnhancing)
}

func TestListTasksNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := f.tasks.CreateTask(ctx, TaskInput{Title: title, Source: model.SourceWeb})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	tasks, err := f.tasks.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "third", tasks[0].Title)
	assert.Equal(t, "first", tasks[2].Title)

	recent, err := f.tasks.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[1].Title)
}

func TestUpdateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.tasks.CreateTask(ctx, TaskInput{Title: "Pay rent", Description: "before friday", Source: model.SourceWeb})
	require.NoError(t, err)

	t.Run("partial update leaves other fields", func(t *testing.T) {
		f.clock.Advance(time.Minute)
		updated, err := f.tasks.UpdateTask(ctx, task.ID, model.TaskPatch{IsCompleted: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, updated.IsCompleted)
		assert.Equal(t, "Pay rent", updated.Title)
		assert.Equal(t, "before friday", updated.Description)
		assert.True(t, f.clock.Now().Equal(updated.UpdatedAt))
		assert.True(t, task.CreatedAt.Equal(updated.CreatedAt))
	})

	t.Run("blank title is rejected", func(t *testing.T) {
		_, err := f.tasks.UpdateTask(ctx, task.ID, model.TaskPatch{Title: strPtr("  ")})
		require.Error(t, err)
		assert.True(t, isValidation(err))

		stored, err := f.tasks.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pay rent", stored.Title)
	})

	t.Run("enhanced clears the in-flight flag and fills the description", func(t *testing.T) {
		_, err := f.tasks.UpdateTask(ctx, task.ID, model.TaskPatch{IsEnhancing: boolPtr(true)})
		require.NoError(t, err)

		updated, err := f.tasks.UpdateTask(ctx, task.ID, model.TaskPatch{Enhanced: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, updated.Enhanced)
		assert.False(t, updated.IsEnhancing)
		require.NotNil(t, updated.EnhancedDescription)
		assert.Equal(t, "before friday", *updated.EnhancedDescription)
	})

	t.Run("empty steps are stored as absent", func(t *testing.T) {
		updated, err := f.tasks.UpdateTask(ctx, task.ID, model.TaskPatch{EnhancementSteps: &[]string{}})
		require.NoError(t, err)
		assert.Nil(t, updated.Steps())
	})
}

func TestUpdateMissingTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tasks.UpdateTask(ctx, "nope", model.TaskPatch{IsCompleted: boolPtr(true)})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = f.tasks.UpdateTask(ctx, "nope", model.TaskPatch{})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = f.tasks.UpdateTask(ctx, "nope", model.TaskPatch{Enhanced: boolPtr(true)})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.tasks.CreateTask(ctx, TaskInput{Title: "Walk dog", Source: model.SourceWeb})
	require.NoError(t, err)

	require.NoError(t, f.tasks.DeleteTask(ctx, task.ID))
	_, err = f.tasks.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.ErrorIs(t, f.tasks.DeleteTask(ctx, task.ID), ErrTaskNotFound)
	assert.Equal(t, []feed.EventType{feed.EventInsert, feed.EventDelete}, f.publisher.Types())
}
