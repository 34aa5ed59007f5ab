package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"todo-assistant/internal/model"
	"todo-assistant/internal/repository"
)

// DefaultSessionTTL is how long an activation keeps an address open.
const DefaultSessionTTL = 12 * time.Hour

// SessionService gates chat traffic by time-boxed sessions.
type SessionService struct {
	repo *repository.SessionRepository
	ttl  time.Duration
	log  *logrus.Logger
	now  func() time.Time
}

func NewSessionService(repo *repository.SessionRepository, ttl time.Duration, log *logrus.Logger) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		repo: repo,
		ttl:  ttl,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// TTL is how long one activation lasts.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Activate opens a session for the address or extends the one already open.
func (s *SessionService) Activate(ctx context.Context, phone string) (*model.ChatSession, error) {
	const op = "service.SessionService.Activate"

	phone, err := normalizeAddress(phone)
	if err != nil {
		return nil, err
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)

	existing, err := s.repo.FindUsable(ctx, phone, now)
	switch {
	case err == nil:
		if err := s.repo.Extend(ctx, existing.ID, expiresAt, now); err != nil {
			return nil, err
		}
		existing.ExpiresAt = expiresAt
		existing.LastMessageAt = now
		s.log.WithFields(logrus.Fields{"operation": op, "phone": phone, "session_id": existing.ID}).Info("session extended")
		return existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		session := model.ChatSession{
			PhoneNumber:   phone,
			IsActive:      true,
			ExpiresAt:     expiresAt,
			LastMessageAt: now,
		}
		if err := s.repo.Create(ctx, &session); err != nil {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{"operation": op, "phone": phone, "session_id": session.ID}).Info("session created")
		return &session, nil
	default:
		return nil, fmt.Errorf("find session: %w", err)
	}
}

// IsActive is the single predicate deciding whether traffic for the address is processed.
func (s *SessionService) IsActive(ctx context.Context, phone string) (bool, error) {
	_, err := s.Active(ctx, phone)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrSessionNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Active returns the authoritative session row for the address.
func (s *SessionService) Active(ctx context.Context, phone string) (*model.ChatSession, error) {
	phone, err := normalizeAddress(phone)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.FindUsable(ctx, phone, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// Touch records inbound activity. It does not extend the expiry.
func (s *SessionService) Touch(ctx context.Context, phone string) error {
	phone, err := normalizeAddress(phone)
	if err != nil {
		return err
	}
	_, err = s.repo.UpdateActive(ctx, phone, map[string]interface{}{"last_message_at": s.now()})
	return err
}

// Expire closes every active row of the address.
func (s *SessionService) Expire(ctx context.Context, phone string) error {
	phone, err := normalizeAddress(phone)
	if err != nil {
		return err
	}
	n, err := s.repo.UpdateActive(ctx, phone, map[string]interface{}{"is_active": false})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"operation": "service.SessionService.Expire", "phone": phone, "rows": n}).Info("sessions expired")
	return nil
}

// SetConversationID stores the reasoning agent's correlation id on active rows.
func (s *SessionService) SetConversationID(ctx context.Context, phone, conversationID string) error {
	phone, err := normalizeAddress(phone)
	if err != nil {
		return err
	}
	_, err = s.repo.UpdateActive(ctx, phone, map[string]interface{}{"conversation_id": conversationID})
	return err
}

// SweepExpired deactivates lapsed rows. Gating does not depend on it.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithFields(logrus.Fields{"operation": "service.SessionService.SweepExpired", "rows": n}).Info("expired sessions swept")
	}
	return n, nil
}

func normalizeAddress(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", invalid("phoneNumber", "phoneNumber is required")
	}
	return phone, nil
}
