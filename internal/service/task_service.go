package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"todo-assistant/internal/feed"
	"todo-assistant/internal/model"
	"todo-assistant/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	Source      model.Source
}

// Publisher receives task change events.
type Publisher interface {
	Publish(ev feed.Event)
}

// Dispatcher starts enhancement of a freshly created task without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, task model.Task) (*model.Task, error)
}

// TaskService owns canonical task state and its field rules.
type TaskService struct {
	repo      *repository.TaskRepository
	publisher Publisher
	enhancer  Dispatcher
	log       *logrus.Logger
	now       func() time.Time
}

func NewTaskService(repo *repository.TaskRepository, publisher Publisher, log *logrus.Logger) *TaskService {
	return &TaskService{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetAutoEnhancer wires the dispatcher used for sources that enhance on creation.
func (s *TaskService) SetAutoEnhancer(d Dispatcher) {
	s.enhancer = d
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	const op = "service.TaskService.CreateTask"

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "title is required and must be a non-empty string")
	}
	if !input.Source.Valid() {
		return nil, invalid("source", fmt.Sprintf("unknown source %q", input.Source))
	}

	now := s.now()
	task := model.Task{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Source:      input.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, &task); err != nil {
		return nil, err
	}
	s.publish(feed.EventInsert, task)

	s.log.WithFields(logrus.Fields{"operation": op, "task_id": task.ID, "source": task.Source}).Info("task created")

	if task.Source.AutoEnhance() && s.enhancer != nil {
		dispatched, err := s.enhancer.Dispatch(ctx, task)
		if err != nil {
			// The task exists; a failed dispatch only means it stays unenhanced.
			s.log.WithField("operation", op).WithError(err).Warn("auto enhancement not dispatched")
			return &task, nil
		}
		return dispatched, nil
	}
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.repo.List(ctx, 0)
}

// ListRecent returns at most limit tasks, newest first.
func (s *TaskService) ListRecent(ctx context.Context, limit int) ([]model.Task, error) {
	return s.repo.List(ctx, limit)
}

// UpdateTask applies a partial update. Setting enhanced=true without
// mentioning isEnhancing also clears isEnhancing.
func (s *TaskService) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	const op = "service.TaskService.UpdateTask"

	columns, err := s.columnsFor(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	task, err := s.repo.Update(ctx, id, columns)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	s.publish(feed.EventUpdate, *task)

	s.log.WithFields(logrus.Fields{
		"operation":    op,
		"task_id":      task.ID,
		"enhanced":     task.Enhanced,
		"is_enhancing": task.IsEnhancing,
	}).Debug("task updated")
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	const op = "service.TaskService.DeleteTask"

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	if task.IsEnhancing {
		s.log.WithFields(logrus.Fields{"operation": op, "task_id": id}).Info("deleted task with enhancement in flight")
	}
	s.publish(feed.EventDelete, *task)
	return nil
}

func (s *TaskService) columnsFor(ctx context.Context, id string, patch model.TaskPatch) (map[string]interface{}, error) {
	columns := map[string]interface{}{}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, invalid("title", "title must be a non-empty string")
		}
		columns["title"] = title
	}
	if patch.Description != nil {
		columns["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.IsCompleted != nil {
		columns["is_completed"] = *patch.IsCompleted
	}
	if patch.EnhancedDescription != nil {
		columns["enhanced_description"] = *patch.EnhancedDescription
	}
	if patch.EnhancementSteps != nil {
		columns["enhancement_steps"] = normalizeSteps(*patch.EnhancementSteps)
	}
	if patch.Enhanced != nil {
		columns["enhanced"] = *patch.Enhanced
		if *patch.Enhanced && patch.IsEnhancing == nil {
			columns["is_enhancing"] = false
		}
		if *patch.Enhanced && patch.EnhancedDescription == nil {
			current, err := s.GetTask(ctx, id)
			if err != nil {
				return nil, err
			}
			if current.EnhancedDescription == nil {
				columns["enhanced_description"] = current.Description
			}
		}
	}
	if patch.IsEnhancing != nil {
		columns["is_enhancing"] = *patch.IsEnhancing
	}

	if patch.Empty() {
		// Still resolve not-found for an empty patch.
		if _, err := s.GetTask(ctx, id); err != nil {
			return nil, err
		}
	}
	columns["updated_at"] = s.now()
	return columns, nil
}

func (s *TaskService) publish(kind feed.EventType, task model.Task) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(feed.Event{Type: kind, Task: task})
}

// normalizeSteps turns an empty list into an absent value.
func normalizeSteps(steps []string) datatypes.JSONSlice[string] {
	if len(steps) == 0 {
		return nil
	}
	return datatypes.JSONSlice[string](append([]string(nil), steps...))
}
