package whatsapp

import (
	"strings"

	"todo-assistant/internal/service"
)

// Inbound is the subset of Z-API's "on message received" payload the relay uses.
type Inbound struct {
	Phone     string `json:"phone"`
	FromMe    bool   `json:"fromMe"`
	IsGroup   bool   `json:"isGroup"`
	MessageID string `json:"messageId"`
	Text      *struct {
		Message string `json:"message"`
	} `json:"text,omitempty"`
	Image *struct {
		Caption string `json:"caption"`
	} `json:"image,omitempty"`
	Video *struct {
		Caption string `json:"caption"`
	} `json:"video,omitempty"`
	Audio    *struct{} `json:"audio,omitempty"`
	Document *struct {
		FileName string `json:"fileName"`
	} `json:"document,omitempty"`
}

// ChatMessage converts the payload into the relay's provider-neutral form.
func (in Inbound) ChatMessage() service.ChatMessage {
	msg := service.ChatMessage{
		ID:       in.MessageID,
		Sender:   NormalizePhone(in.Phone),
		FromSelf: in.FromMe,
		IsGroup:  in.IsGroup,
		HasAudio: in.Audio != nil,
	}
	if in.Text != nil {
		msg.Text = in.Text.Message
	}
	if in.Image != nil {
		msg.ImageCaption = in.Image.Caption
	}
	if in.Video != nil {
		msg.VideoCaption = in.Video.Caption
	}
	if in.Document != nil {
		msg.Document = &service.Document{FileName: in.Document.FileName}
	}
	return msg
}

// NormalizePhone strips WhatsApp JID suffixes from a phone number.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.Replace(phone, "@s.whatsapp.net", "", 1)
	phone = strings.Replace(phone, "-group", "", 1)
	return phone
}
