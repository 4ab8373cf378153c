package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jhjj/staychat/internal/chat"
	"github.com/jhjj/staychat/internal/models"
)

func (d *Database) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := d.db.WithContext(ctx).Create(room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return chat.ErrConflict
		}
		d.logger.Errorw("create room", "dedup_key", room.DedupKey, "error", err)
		return err
	}
	return nil
}

// UpsertDMRoom перезаписывает expires_at и участников по dedup_key,
// чтобы истекшая, но еще не убранная строка не блокировала пересоздание DM
func (d *Database) UpsertDMRoom(ctx context.Context, room *models.Room) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at", "participants"}),
	}).Create(room).Error
	if err != nil {
		d.logger.Errorw("upsert dm room", "dedup_key", room.DedupKey, "error", err)
		return err
	}
	return nil
}

// RoomByDedupKey отдает строку как есть, включая истекшие DM: проверку
// свежести делает доменный слой — на пути отправки истекшая комната
// еще нужна для пересчета expiry
func (d *Database) RoomByDedupKey(ctx context.Context, key string) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "dedup_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrNotFound
		}
		d.logger.Errorw("room by dedup key", "dedup_key", key, "error", err)
		return nil, err
	}
	return &room, nil
}

func (d *Database) RoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrNotFound
		}
		d.logger.Errorw("room by id", "room_id", id, "error", err)
		return nil, err
	}
	return &room, nil
}

func (d *Database) UpdateRoomExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	err := d.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt).Error
	if err != nil {
		d.logger.Errorw("update room expiry", "room_id", id, "error", err)
	}
	return err
}
