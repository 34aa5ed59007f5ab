package mirror

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"todo-assistant/internal/feed"
	"todo-assistant/internal/model"
)

// TempIDPrefix marks placeholder ids that the server never issued.
const TempIDPrefix = "temp-"

// API is the server the mirror reconciles against.
type API interface {
	List(ctx context.Context) ([]model.Task, error)
	Create(ctx context.Context, title, description string) (*model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, id string) error
	Enhance(ctx context.Context, id string) (*model.Task, error)
}

// Mirror holds the local task list.
type Mirror struct {
	api   API
	log   *logrus.Logger
	mu    sync.Mutex
	tasks []model.Task
	now   func() time.Time
}

func New(api API, log *logrus.Logger) *Mirror {
	return &Mirror{
		api: api,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Tasks returns a copy of the current list.
func (m *Mirror) Tasks() []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.tasks)
}

// Apply runs one update against the list.
func (m *Mirror) Apply(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = Reduce(m.tasks, u)
}

// Load replaces the list with the server's.
func (m *Mirror) Load(ctx context.Context) error {
	tasks, err := m.api.List(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	m.Apply(RestoreList{Tasks: tasks})
	return nil
}

// Create shows a placeholder at once and swaps in the server copy on success.
func (m *Mirror) Create(ctx context.Context, title, description string) (*model.Task, error) {
	now := m.now()
	placeholder := model.Task{
		ID:          TempIDPrefix + uuid.NewString(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Source:      model.SourceWeb,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.Apply(OptimisticCreate{Task: placeholder})

	created, err := m.api.Create(ctx, title, description)
	if err != nil {
		m.Apply(RollbackCreate{TempID: placeholder.ID})
		return nil, err
	}
	m.Apply(Confirmed{TempID: placeholder.ID, Task: *created})
	return created, nil
}

// Update merges patch locally, then confirms or restores the prior copy.
func (m *Mirror) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	return m.patchThen(id, patch, func() (*model.Task, error) {
		return m.api.Update(ctx, id, patch)
	})
}

// Enhance flags the task as in flight locally while the server enhances it.
func (m *Mirror) Enhance(ctx context.Context, id string) (*model.Task, error) {
	enhancing := true
	return m.patchThen(id, model.TaskPatch{IsEnhancing: &enhancing}, func() (*model.Task, error) {
		return m.api.Enhance(ctx, id)
	})
}

func (m *Mirror) patchThen(id string, patch model.TaskPatch, call func() (*model.Task, error)) (*model.Task, error) {
	m.mu.Lock()
	i := indexOf(m.tasks, id)
	var snapshot model.Task
	if i >= 0 {
		snapshot = m.tasks[i]
	}
	m.tasks = Reduce(m.tasks, OptimisticPatch{ID: id, Patch: patch})
	m.mu.Unlock()

	task, err := call()
	if err != nil {
		if i >= 0 {
			m.Apply(RestoreTask{Task: snapshot})
		}
		return nil, err
	}
	m.Apply(Confirmed{Task: *task})
	return task, nil
}

// Delete removes the task locally and restores the previous list if the server refuses.
func (m *Mirror) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	previous := clone(m.tasks)
	m.tasks = Reduce(m.tasks, OptimisticDelete{ID: id})
	m.mu.Unlock()

	if err := m.api.Delete(ctx, id); err != nil {
		m.Apply(RestoreList{Tasks: previous})
		return err
	}
	return nil
}

// Run applies change feed events until ctx is done or the channel closes.
func (m *Mirror) Run(ctx context.Context, events <-chan feed.Event) error {
	const op = "mirror.Mirror.Run"

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			u := FromEvent(ev)
			if u == nil {
				m.log.WithFields(logrus.Fields{"operation": op, "type": ev.Type}).Warn("unknown event type")
				continue
			}
			m.Apply(u)
		}
	}
}
