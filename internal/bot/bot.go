// Package bot connects a Telegram bot account to the chat relay.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"todo-assistant/internal/service"
)

// AddressPrefix marks chat addresses that belong to Telegram.
const AddressPrefix = "tg:"

// Handler processes one inbound chat message.
type Handler interface {
	Handle(ctx context.Context, msg service.ChatMessage) (service.Outcome, error)
}

// Channel is the Telegram transport: it polls updates into a Handler and
// sends outbound texts.
type Channel struct {
	api     *tgbotapi.BotAPI
	handler Handler
	log     *logrus.Logger
}

func New(token string, log *logrus.Logger) (*Channel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.WithField("operation", "bot.New").Infof("bot authorized on account %s", api.Self.UserName)

	return &Channel{api: api, log: log}, nil
}

// SetHandler wires the relay that receives inbound messages.
func (c *Channel) SetHandler(h Handler) {
	c.handler = h
}

// Start begins polling updates until ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	const op = "bot.Channel.Start"
	if c.handler == nil {
		return fmt.Errorf("telegram channel has no handler")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := c.api.GetUpdatesChan(updateConfig)

	c.log.WithField("operation", op).Info("start polling updates")

	go func() {
		<-ctx.Done()
		c.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}
		msg := toChatMessage(update.Message, c.api.Self.ID)
		outcome, err := c.handler.Handle(ctx, msg)
		log := c.log.WithFields(logrus.Fields{"operation": op, "sender": msg.Sender, "outcome": outcome.String()})
		if err != nil {
			log.WithError(err).Error("handle message")
			continue
		}
		log.Debug("message handled")
	}

	return ctx.Err()
}

// Send delivers text to a "tg:<chatID>" address. It satisfies service.Sender.
func (c *Channel) Send(_ context.Context, address, text string) error {
	chatID, err := ParseAddress(address)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.api.Send(msg); err != nil {
		// Agent replies are not guaranteed to be valid Markdown.
		msg.ParseMode = ""
		if _, err := c.api.Send(msg); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// Address formats a chat id as a relay address.
func Address(chatID int64) string {
	return AddressPrefix + strconv.FormatInt(chatID, 10)
}

// ParseAddress extracts the chat id from a relay address.
func ParseAddress(address string) (int64, error) {
	if !strings.HasPrefix(address, AddressPrefix) {
		return 0, fmt.Errorf("not a telegram address: %q", address)
	}
	chatID, err := strconv.ParseInt(strings.TrimPrefix(address, AddressPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse telegram address %q: %w", address, err)
	}
	return chatID, nil
}

func toChatMessage(m *tgbotapi.Message, selfID int64) service.ChatMessage {
	msg := service.ChatMessage{
		ID:   strconv.Itoa(m.MessageID),
		Text: m.Text,
	}
	if m.Chat != nil {
		msg.Sender = Address(m.Chat.ID)
		msg.IsGroup = !m.Chat.IsPrivate()
	}
	if m.From != nil {
		msg.FromSelf = m.From.ID == selfID
	}
	switch {
	case len(m.Photo) > 0:
		msg.ImageCaption = m.Caption
	case m.Video != nil:
		msg.VideoCaption = m.Caption
	}
	if m.Voice != nil || m.Audio != nil {
		msg.HasAudio = true
	}
	if m.Document != nil {
		msg.Document = &service.Document{FileName: m.Document.FileName}
	}
	return msg
}
