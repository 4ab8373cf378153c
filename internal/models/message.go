package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeSystem = "system"
)

type Message struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomID   uuid.UUID `gorm:"not null;index" json:"room_id"`
	SenderID string    `gorm:"not null" json:"sender_id"`
	Content  string    `gorm:"not null" json:"content"`
	Type     string    `gorm:"default:'text';check:type IN ('text','image','system')" json:"type"`

	CreatedAt time.Time `json:"created_at"`

	// Наследуется от expiry DM-комнаты в момент отправки,
	// для сообщений групповых комнат всегда NULL
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

// Expired сообщает, истекло ли сообщение к моменту now
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}
