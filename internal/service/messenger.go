package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Sender delivers a text to a chat address over one provider.
type Sender interface {
	Send(ctx context.Context, address, text string) error
}

// Messenger is the only outbound path to chat users. It refuses to send
// to an address without an active session, whoever the caller is.
type Messenger struct {
	sessions *SessionService
	fallback Sender
	routes   map[string]Sender
	log      *logrus.Logger
}

// NewMessenger builds a messenger whose unprefixed addresses go to fallback.
func NewMessenger(sessions *SessionService, fallback Sender, log *logrus.Logger) *Messenger {
	return &Messenger{
		sessions: sessions,
		fallback: fallback,
		routes:   make(map[string]Sender),
		log:      log,
	}
}

// Route sends addresses starting with prefix through sender.
func (m *Messenger) Route(prefix string, sender Sender) {
	m.routes[prefix] = sender
}

func (m *Messenger) Send(ctx context.Context, address, text string) error {
	const op = "service.Messenger.Send"

	if strings.TrimSpace(text) == "" {
		return invalid("message", "message is required")
	}
	active, err := m.sessions.IsActive(ctx, address)
	if err != nil {
		return err
	}
	if !active {
		return ErrNoActiveSession
	}

	sender := m.senderFor(address)
	if sender == nil {
		return fmt.Errorf("%w: no channel for %q", ErrAgentNotConfigured, address)
	}
	if err := sender.Send(ctx, address, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	m.log.WithFields(logrus.Fields{"operation": op, "address": address}).Info("message sent")
	return nil
}

func (m *Messenger) senderFor(address string) Sender {
	for prefix, sender := range m.routes {
		if strings.HasPrefix(address, prefix) {
			return sender
		}
	}
	return m.fallback
}
