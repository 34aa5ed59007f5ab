package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"todo-assistant/internal/model"
)

// EnrichRequest is what the enrichment agent receives.
type EnrichRequest struct {
	TaskID      string
	Title       string
	Description string
}

// EnrichResult is the agent's structured answer.
type EnrichResult struct {
	EnhancedDescription string
	EnhancementSteps    []string
}

// Enricher elaborates a task's description.
type Enricher interface {
	Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error)
}

// cleanupTimeout bounds the flag-clearing write on the failure path.
const cleanupTimeout = 10 * time.Second

// EnhancementService drives the Idle -> Enhancing -> Enhanced/Idle cycle of a task.
type EnhancementService struct {
	tasks    *TaskService
	enricher Enricher
	timeout  time.Duration
	log      *logrus.Logger
	wg       sync.WaitGroup
}

func NewEnhancementService(tasks *TaskService, enricher Enricher, timeout time.Duration, log *logrus.Logger) *EnhancementService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &EnhancementService{
		tasks:    tasks,
		enricher: enricher,
		timeout:  timeout,
		log:      log,
	}
}

// Configured reports whether an enrichment agent is available.
func (s *EnhancementService) Configured() bool {
	return s.enricher != nil
}

// Enhance runs enhancement synchronously and returns the final task state.
func (s *EnhancementService) Enhance(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.enricher == nil {
		return nil, ErrAgentNotConfigured
	}
	if _, err := s.markEnhancing(ctx, task.ID); err != nil {
		return nil, err
	}
	return s.run(ctx, *task)
}

// Dispatch sets the in-flight flag and enhances in the background. The
// caller gets the flagged task back immediately; the background run clears
// the flag on its own whatever happens to ctx.
func (s *EnhancementService) Dispatch(ctx context.Context, task model.Task) (*model.Task, error) {
	const op = "service.EnhancementService.Dispatch"
	if s.enricher == nil {
		return nil, ErrAgentNotConfigured
	}

	flagged, err := s.markEnhancing(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithFields(logrus.Fields{"operation": op, "task_id": task.ID, "panic": r}).Error("enhancement panicked")
				s.clearFlag(detached, task.ID)
			}
		}()
		if _, err := s.run(detached, task); err != nil {
			s.log.WithFields(logrus.Fields{"operation": op, "task_id": task.ID}).WithError(err).Warn("background enhancement failed")
		}
	}()
	return flagged, nil
}

// Wait blocks until background enhancements have finished.
func (s *EnhancementService) Wait() {
	s.wg.Wait()
}

func (s *EnhancementService) markEnhancing(ctx context.Context, id string) (*model.Task, error) {
	enhancing := true
	return s.tasks.UpdateTask(ctx, id, model.TaskPatch{IsEnhancing: &enhancing})
}

func (s *EnhancementService) run(ctx context.Context, task model.Task) (*model.Task, error) {
	const op = "service.EnhancementService.run"
	log := s.log.WithFields(logrus.Fields{"operation": op, "task_id": task.ID})

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.enricher.Enrich(callCtx, EnrichRequest{
		TaskID:      task.ID,
		Title:       task.Title,
		Description: task.Description,
	})
	cancel()

	if err == nil && strings.TrimSpace(result.EnhancedDescription) == "" {
		err = errors.New("empty enhanced description")
	}
	if err != nil {
		log.WithError(err).Warn("enrichment failed")
		s.clearFlag(ctx, task.ID)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	enhanced := true
	enhancing := false
	description := result.EnhancedDescription
	steps := result.EnhancementSteps
	updated, err := s.tasks.UpdateTask(context.WithoutCancel(ctx), task.ID, model.TaskPatch{
		Enhanced:            &enhanced,
		IsEnhancing:         &enhancing,
		EnhancedDescription: &description,
		EnhancementSteps:    &steps,
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			log.Info("task deleted before enhancement finished, result dropped")
			return nil, err
		}
		log.WithError(err).Error("could not store enhancement result")
		s.clearFlag(ctx, task.ID)
		return nil, err
	}
	log.WithField("steps", len(updated.Steps())).Info("task enhanced")
	return updated, nil
}

// clearFlag resets isEnhancing, leaving enhanced and prior results untouched.
func (s *EnhancementService) clearFlag(ctx context.Context, id string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	enhancing := false
	if _, err := s.tasks.UpdateTask(writeCtx, id, model.TaskPatch{IsEnhancing: &enhancing}); err != nil && !errors.Is(err, ErrTaskNotFound) {
		s.log.WithFields(logrus.Fields{"operation": "service.EnhancementService.clearFlag", "task_id": id}).
			WithError(err).Error("could not clear enhancing flag")
	}
}
