package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"todo-assistant/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// List returns tasks newest first. A non-positive limit means no limit.
func (r *TaskRepository) List(ctx context.Context, limit int) ([]model.Task, error) {
	var tasks []model.Task
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// Update writes the given columns of one row and returns the fresh row.
// It returns gorm.ErrRecordNotFound when no row has that id.
func (r *TaskRepository) Update(ctx context.Context, id string, columns map[string]interface{}) (*model.Task, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&model.Task{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return nil, fmt.Errorf("update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete removes a task. It returns gorm.ErrRecordNotFound when no row has that id.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Task{})
	if result.Error != nil {
		return fmt.Errorf("delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
