package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"todo-assistant/internal/model"
)

// SessionRepository handles chat session rows.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindUsable returns the most recent active row for the phone number that
// has not expired at now.
func (r *SessionRepository) FindUsable(ctx context.Context, phone string, now time.Time) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).
		Where("phone_number = ? AND is_active = ? AND expires_at > ?", phone, true, now).
		Order("expires_at DESC, id DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Extend moves the expiry of a single row and records activity.
func (r *SessionRepository) Extend(ctx context.Context, id uint, expiresAt, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.ChatSession{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"expires_at":      expiresAt,
			"last_message_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("extend session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateActive sets columns on every active row of the phone number and
// reports how many rows changed.
func (r *SessionRepository) UpdateActive(ctx context.Context, phone string, columns map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("phone_number = ? AND is_active = ?", phone, true).
		Updates(columns)
	if result.Error != nil {
		return 0, fmt.Errorf("update sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeactivateExpired marks every active row whose expiry is before now as inactive.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *SessionRepository) ListByPhone(ctx context.Context, phone string) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
