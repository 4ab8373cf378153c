package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/chat"
	"github.com/jhjj/staychat/internal/models"
)

// MembershipStore держит членства в Redis с TTL до конца проживания.
// Redis сам убирает истекшие ключи, но читающая сторона на это не
// полагается и проверяет expiresAt при каждом чтении
type MembershipStore struct {
	rdb    *redis.Client
	logger *zap.SugaredLogger
}

func NewMembershipStore(rdb *redis.Client, logger *zap.SugaredLogger) *MembershipStore {
	return &MembershipStore{rdb: rdb, logger: logger}
}

func membershipKey(roomID uuid.UUID, userID string) string {
	return fmt.Sprintf("membership:%s:%s", roomID, userID)
}

// Upsert перезаписывает запись (room, user) целиком — повторная регистрация
// двигает expiry, дублей не бывает
func (s *MembershipStore) Upsert(ctx context.Context, m *models.Membership) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	ttl := time.Until(m.ExpiresAt)
	if ttl <= 0 {
		// Просроченная запись допустима: она сразу читается как
		// отсутствующая, ключу оставляем символический TTL
		ttl = time.Second
	}

	if err := s.rdb.Set(ctx, membershipKey(m.RoomID, m.UserID), data, ttl).Err(); err != nil {
		s.logger.Errorw("upsert membership", "room_id", m.RoomID, "user_id", m.UserID, "error", err)
		return err
	}
	return nil
}

func (s *MembershipStore) Get(ctx context.Context, roomID uuid.UUID, userID string, now time.Time) (*models.Membership, error) {
	data, err := s.rdb.Get(ctx, membershipKey(roomID, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, chat.ErrNotFound
		}
		s.logger.Errorw("get membership", "room_id", roomID, "user_id", userID, "error", err)
		return nil, err
	}

	var m models.Membership
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	if !m.Live(now) {
		return nil, chat.ErrNotFound
	}
	return &m, nil
}
