package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhjj/staychat/internal/models"
)

// Страховочный потолок выборки истории
const maxHistory = 500

func (d *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := d.db.WithContext(ctx).Create(msg).Error; err != nil {
		d.logger.Errorw("save message", "room_id", msg.RoomID, "error", err)
		return err
	}
	return nil
}

// MessagesByRoom отдает историю комнаты от старых к новым. Сообщения,
// чей унаследованный expiry уже прошел, не видны независимо от уборки
func (d *Database) MessagesByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND (expires_at IS NULL OR expires_at > ?)", roomID, now).
		Order("created_at ASC").
		Limit(maxHistory).
		Find(&messages).Error
	if err != nil {
		d.logger.Errorw("messages by room", "room_id", roomID, "error", err)
		return nil, err
	}
	return messages, nil
}
