package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/chat"
	"github.com/jhjj/staychat/internal/models"
)

// Интеграционный тест, требует живой Redis
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestMembershipRoundTrip(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewMembershipStore(rdb, zap.NewNop().Sugar())
	ctx := context.Background()

	roomID := uuid.New()
	now := time.Now()
	m := &models.Membership{
		RoomID:    roomID,
		UserID:    "a@x.com",
		LodgingID: 42,
		ExpiresAt: now.Add(time.Hour).UTC(),
	}

	require.NoError(t, store.Upsert(ctx, m))

	got, err := store.Get(ctx, roomID, "a@x.com", now)
	require.NoError(t, err)
	assert.Equal(t, m.UserID, got.UserID)
	assert.Equal(t, m.LodgingID, got.LodgingID)
	assert.True(t, m.ExpiresAt.Equal(got.ExpiresAt))

	// Повторная регистрация двигает срок, дубля не появляется
	m.ExpiresAt = now.Add(2 * time.Hour).UTC()
	require.NoError(t, store.Upsert(ctx, m))

	got, err = store.Get(ctx, roomID, "a@x.com", now)
	require.NoError(t, err)
	assert.True(t, m.ExpiresAt.Equal(got.ExpiresAt))
}

func TestMembershipExpiredReadsAsMissing(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewMembershipStore(rdb, zap.NewNop().Sugar())
	ctx := context.Background()

	roomID := uuid.New()
	m := &models.Membership{
		RoomID:    roomID,
		UserID:    "b@x.com",
		LodgingID: 42,
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, store.Upsert(ctx, m))

	// Проверка свежести на чтении не ждет, пока Redis удалит ключ
	_, err := store.Get(ctx, roomID, "b@x.com", m.ExpiresAt.Add(time.Second))
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestMembershipMissing(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewMembershipStore(rdb, zap.NewNop().Sugar())

	_, err := store.Get(context.Background(), uuid.New(), "nobody@x.com", time.Now())
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestMembershipPastDatedUpsert(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewMembershipStore(rdb, zap.NewNop().Sugar())
	ctx := context.Background()

	roomID := uuid.New()
	m := &models.Membership{
		RoomID:    roomID,
		UserID:    "c@x.com",
		LodgingID: 42,
		ExpiresAt: time.Now().Add(-time.Hour).UTC(),
	}

	// Просроченная запись принимается и сразу читается как отсутствующая
	require.NoError(t, store.Upsert(ctx, m))
	_, err := store.Get(ctx, roomID, "c@x.com", time.Now())
	assert.ErrorIs(t, err, chat.ErrNotFound)
}
