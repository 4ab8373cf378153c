package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoomKindGroup = "group"
	RoomKindDM    = "dm"
)

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind      string    `gorm:"not null;check:kind IN ('group','dm')" json:"kind"`
	LodgingID int       `gorm:"not null;index" json:"accommodation_id"`

	// Ключ уникальности: "group:<lodgingId>" для групповых комнат,
	// "dm:<lodgingId>:<a>|<b>" (пара отсортирована) для DM
	DedupKey string `gorm:"uniqueIndex;not null" json:"-"`

	// Участники хранятся только для отображения, авторизация по ним не идет
	// (для DM ровно два участника, по ним строится DedupKey)
	Participants []string `gorm:"serializer:json" json:"participants"`

	// Для групповых комнат всегда NULL, для DM всегда выставлено
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Expired сообщает, истекла ли комната к моменту now
func (r *Room) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
