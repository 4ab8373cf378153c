package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership — временное право пользователя писать в групповую комнату.
// Хранится в Redis с TTL до времени выезда, запись уникальна по (room, user).
type Membership struct {
	RoomID    uuid.UUID `json:"room_id"`
	UserID    string    `json:"user_id"`
	LodgingID int       `json:"accommodation_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live сообщает, действует ли членство в момент now
func (m *Membership) Live(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}
