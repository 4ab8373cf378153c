// Package memstore содержит потокобезопасные хранилища в памяти.
// Используются в тестах вместо Postgres и Redis, реализуют те же
// интерфейсы и те же договоренности об ошибках, что и пакет database.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhjj/staychat/internal/chat"
	"github.com/jhjj/staychat/internal/models"
)

type RoomStore struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*models.Room
	byKey map[string]uuid.UUID
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		byID:  make(map[uuid.UUID]*models.Room),
		byKey: make(map[string]uuid.UUID),
	}
}

func (s *RoomStore) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[room.DedupKey]; ok {
		return chat.ErrConflict
	}
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}

	s.put(room)
	return nil
}

func (s *RoomStore) UpsertDMRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[room.DedupKey]; ok {
		existing := s.byID[id]
		existing.ExpiresAt = copyTime(room.ExpiresAt)
		existing.Participants = append([]string(nil), room.Participants...)
		room.ID = existing.ID
		return nil
	}

	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}

	s.put(room)
	return nil
}

func (s *RoomStore) RoomByDedupKey(_ context.Context, key string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return copyRoom(s.byID[id]), nil
}

func (s *RoomStore) RoomByID(_ context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.byID[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return copyRoom(room), nil
}

func (s *RoomStore) UpdateRoomExpiry(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.byID[id]
	if !ok {
		return chat.ErrNotFound
	}
	room.ExpiresAt = &expiresAt
	return nil
}

func (s *RoomStore) put(room *models.Room) {
	s.byID[room.ID] = copyRoom(room)
	s.byKey[room.DedupKey] = room.ID
}

type MembershipStore struct {
	mu    sync.Mutex
	items map[string]models.Membership
}

func NewMembershipStore() *MembershipStore {
	return &MembershipStore{items: make(map[string]models.Membership)}
}

func membershipKey(roomID uuid.UUID, userID string) string {
	return roomID.String() + "/" + userID
}

func (s *MembershipStore) Upsert(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[membershipKey(m.RoomID, m.UserID)] = *m
	return nil
}

func (s *MembershipStore) Get(_ context.Context, roomID uuid.UUID, userID string, now time.Time) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.items[membershipKey(roomID, userID)]
	if !ok || !m.Live(now) {
		return nil, chat.ErrNotFound
	}
	return &m, nil
}

type MessageStore struct {
	mu     sync.Mutex
	byRoom map[uuid.UUID][]models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byRoom: make(map[uuid.UUID][]models.Message)}
}

func (s *MessageStore) SaveMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	s.byRoom[msg.RoomID] = append(s.byRoom[msg.RoomID], *msg)
	return nil
}

// MessagesByRoom отдает сообщения в порядке записи; порядок сохранения
// совпадает с порядком created_at, как и в Postgres-реализации
func (s *MessageStore) MessagesByRoom(_ context.Context, roomID uuid.UUID, now time.Time) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0, len(s.byRoom[roomID]))
	for _, m := range s.byRoom[roomID] {
		if m.Expired(now) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func copyRoom(r *models.Room) *models.Room {
	cp := *r
	cp.Participants = append([]string(nil), r.Participants...)
	cp.ExpiresAt = copyTime(r.ExpiresAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
