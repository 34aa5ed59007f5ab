package model

import "time"

// ChatSession is a time-boxed window in which a chat address may talk to the assistant.
// Several historical rows may exist per address; only active unexpired ones count.
type ChatSession struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PhoneNumber    string    `gorm:"index:idx_session_phone_active,priority:1;not null" json:"phoneNumber"`
	IsActive       bool      `gorm:"index:idx_session_phone_active,priority:2;not null" json:"isActive"`
	ExpiresAt      time.Time `gorm:"index;not null" json:"expiresAt"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	ConversationID *string   `json:"conversationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
