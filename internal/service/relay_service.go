package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultActivationKeyword = "#todolist"

	audioPlaceholder = "[Audio message]"

	welcomeFormat  = "🤖 *TodoList Chatbot Activated!*\n\nYou can now interact with the chatbot for the next %s.\n\nSend me any message and I'll help you manage your tasks!"
	apologyMessage = "⚠️ Chatbot is temporarily unavailable. Please try again later."
)

// welcomeMessage announces an activation lasting ttl.
func welcomeMessage(ttl time.Duration) string {
	return fmt.Sprintf(welcomeFormat, humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

// Document is a file attachment of an inbound message.
type Document struct {
	FileName string
}

// ChatMessage is a provider-neutral inbound chat message.
type ChatMessage struct {
	ID           string
	Sender       string
	FromSelf     bool
	IsGroup      bool
	Text         string
	ImageCaption string
	VideoCaption string
	HasAudio     bool
	Document     *Document
}

// Content extracts the text the relay works with.
func (m ChatMessage) Content() string {
	switch {
	case m.Text != "":
		return m.Text
	case m.ImageCaption != "":
		return m.ImageCaption
	case m.VideoCaption != "":
		return m.VideoCaption
	case m.HasAudio:
		return audioPlaceholder
	case m.Document != nil:
		name := m.Document.FileName
		if name == "" {
			name = "file"
		}
		return fmt.Sprintf("[Document: %s]", name)
	default:
		return ""
	}
}

// ForwardPayload is what the reasoning agent receives.
type ForwardPayload struct {
	Source      string    `json:"source"`
	Type        string    `json:"type"`
	PhoneNumber string    `json:"phoneNumber"`
	Message     string    `json:"message"`
	MessageID   string    `json:"messageId"`
	Timestamp   time.Time `json:"timestamp"`
}

// ForwardResult carries what the agent echoed back, if anything.
type ForwardResult struct {
	ConversationID string
}

// Forwarder hands a chat message to the reasoning agent.
type Forwarder interface {
	Forward(ctx context.Context, payload ForwardPayload) (ForwardResult, error)
}

// Outcome is what the relay did with a message.
type Outcome int

const (
	OutcomeIgnoredOwn Outcome = iota
	OutcomeIgnoredGroup
	OutcomeSessionActivated
	OutcomeIgnoredNoSession
	OutcomeForwarded
	OutcomeAgentUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnoredOwn:
		return "Own message ignored"
	case OutcomeIgnoredGroup:
		return "Group message ignored"
	case OutcomeSessionActivated:
		return "Session activated"
	case OutcomeIgnoredNoSession:
		return "No active session - message ignored"
	case OutcomeForwarded:
		return "Message forwarded to agent"
	case OutcomeAgentUnavailable:
		return "Agent not configured"
	default:
		return "unknown"
	}
}

// RelayService applies session gating to inbound chat and forwards what passes.
type RelayService struct {
	sessions  *SessionService
	messenger *Messenger
	forwarder Forwarder
	keyword   string
	source    string
	timeout   time.Duration
	log       *logrus.Logger
	now       func() time.Time
}

// RelayOptions tunes a relay for one channel.
type RelayOptions struct {
	// Source tags forwarded payloads, e.g. "whatsapp_chatbot".
	Source         string
	Keyword        string
	ForwardTimeout time.Duration
}

func NewRelayService(sessions *SessionService, messenger *Messenger, forwarder Forwarder, opts RelayOptions, log *logrus.Logger) *RelayService {
	if opts.Keyword == "" {
		opts.Keyword = DefaultActivationKeyword
	}
	if opts.Source == "" {
		opts.Source = "whatsapp_chatbot"
	}
	if opts.ForwardTimeout <= 0 {
		opts.ForwardTimeout = 15 * time.Second
	}
	return &RelayService{
		sessions:  sessions,
		messenger: messenger,
		forwarder: forwarder,
		keyword:   strings.ToLower(opts.Keyword),
		source:    opts.Source,
		timeout:   opts.ForwardTimeout,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle evaluates one inbound message in order: own, group, activation,
// gating, forward.
func (s *RelayService) Handle(ctx context.Context, msg ChatMessage) (Outcome, error) {
	const op = "service.RelayService.Handle"

	if msg.FromSelf {
		return OutcomeIgnoredOwn, nil
	}
	if msg.IsGroup {
		return OutcomeIgnoredGroup, nil
	}

	text := msg.Content()
	log := s.log.WithFields(logrus.Fields{"operation": op, "sender": msg.Sender, "message_id": msg.ID})
	log.Debugf("message: %s", text)

	if strings.Contains(strings.ToLower(text), s.keyword) {
		if _, err := s.sessions.Activate(ctx, msg.Sender); err != nil {
			return OutcomeSessionActivated, fmt.Errorf("activate session: %w", err)
		}
		if err := s.messenger.Send(ctx, msg.Sender, welcomeMessage(s.sessions.TTL())); err != nil {
			return OutcomeSessionActivated, fmt.Errorf("send welcome: %w", err)
		}
		log.Info("session activated")
		return OutcomeSessionActivated, nil
	}

	active, err := s.sessions.IsActive(ctx, msg.Sender)
	if err != nil {
		return OutcomeIgnoredNoSession, err
	}
	if !active {
		log.Info("message ignored, no active session")
		return OutcomeIgnoredNoSession, nil
	}

	if err := s.sessions.Touch(ctx, msg.Sender); err != nil {
		return OutcomeForwarded, err
	}

	if s.forwarder == nil {
		log.Error("reasoning agent not configured")
		if err := s.messenger.Send(ctx, msg.Sender, apologyMessage); err != nil {
			log.WithError(err).Warn("apology not delivered")
		}
		return OutcomeAgentUnavailable, ErrAgentNotConfigured
	}

	fwdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result, err := s.forwarder.Forward(fwdCtx, ForwardPayload{
		Source:      s.source,
		Type:        "chatbot_interaction",
		PhoneNumber: msg.Sender,
		Message:     text,
		MessageID:   msg.ID,
		Timestamp:   s.now(),
	})
	if err != nil {
		return OutcomeForwarded, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if result.ConversationID != "" {
		if err := s.sessions.SetConversationID(ctx, msg.Sender, result.ConversationID); err != nil {
			log.WithError(err).Warn("conversation id not stored")
		}
	}
	log.Info("message forwarded")
	return OutcomeForwarded, nil
}
