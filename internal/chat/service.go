package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/models"
)

// RoomStore — долговременный реестр комнат (Postgres)
type RoomStore interface {
	// CreateRoom возвращает ErrConflict при нарушении уникальности DedupKey
	CreateRoom(ctx context.Context, room *models.Room) error
	// UpsertDMRoom создает DM-комнату или обновляет expires_at существующей
	// строки с тем же DedupKey (страховка от гонки между инстансами)
	UpsertDMRoom(ctx context.Context, room *models.Room) error
	// Обе выборки отдают строку как есть, без фильтра свежести: решение
	// "истекла — значит отсутствует" принимает сервис, потому что путь
	// отправки в DM должен видеть истекшую комнату для пересчета expiry
	RoomByDedupKey(ctx context.Context, key string) (*models.Room, error)
	RoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	UpdateRoomExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
}

// MembershipStore — записи членства с TTL (Redis)
type MembershipStore interface {
	Upsert(ctx context.Context, m *models.Membership) error
	// Get возвращает ErrNotFound, если записи нет или она истекла к now
	Get(ctx context.Context, roomID uuid.UUID, userID string, now time.Time) (*models.Membership, error)
}

// MessageStore — журнал сообщений (Postgres)
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	// MessagesByRoom отдает историю по created_at по возрастанию,
	// истекшие сообщения отфильтрованы на чтении
	MessagesByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) ([]models.Message, error)
}

// Publisher рассылает сохраненное сообщение подписчикам комнаты
type Publisher interface {
	Publish(msg *models.Message)
}

// Service связывает реестр комнат, членства и журнал сообщений
// и принимает все решения о доступе
type Service struct {
	rooms    RoomStore
	members  MembershipStore
	messages MessageStore
	pub      Publisher
	logger   *zap.SugaredLogger

	// Сериализация get-or-create по ключу комнаты и отправки по комнате
	keys keyedMutex

	// Гейтить ли вход в групповую комнату по членству. По умолчанию вход
	// свободный, проверяется только отправка
	gateJoin bool

	now func() time.Time
}

type Option func(*Service)

// WithJoinGate включает проверку членства при входе в групповую комнату
func WithJoinGate(gate bool) Option {
	return func(s *Service) { s.gateJoin = gate }
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(rooms RoomStore, members MembershipStore, messages MessageStore, pub Publisher, logger *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		rooms:    rooms,
		members:  members,
		messages: messages,
		pub:      pub,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProvisionGroupRoom идемпотентно возвращает групповую комнату жилья,
// создавая её при первом обращении. Параллельные вызовы для одного
// lodgingID получают одну и ту же комнату
func (s *Service) ProvisionGroupRoom(ctx context.Context, lodgingID int, seedParticipants []string) (*models.Room, error) {
	if lodgingID <= 0 {
		return nil, fmt.Errorf("%w: accommodationId is required", ErrInvalidInput)
	}

	key := GroupDedupKey(lodgingID)
	mu := s.keys.lock(key)
	defer mu.Unlock()

	room, err := s.rooms.RoomByDedupKey(ctx, key)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	room = &models.Room{
		Kind:         models.RoomKindGroup,
		LodgingID:    lodgingID,
		DedupKey:     key,
		Participants: dedupParticipants(seedParticipants),
	}

	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		// Уникальный индекс — страховка от гонки, комнату создал кто-то другой
		if errors.Is(err, ErrConflict) {
			return s.rooms.RoomByDedupKey(ctx, key)
		}
		return nil, err
	}

	s.logger.Infow("group room created", "room_id", room.ID, "accommodation_id", lodgingID)
	return room, nil
}

// GroupRoom возвращает существующую групповую комнату жилья
func (s *Service) GroupRoom(ctx context.Context, lodgingID int) (*models.Room, error) {
	if lodgingID <= 0 {
		return nil, fmt.Errorf("%w: accommodationId is required", ErrInvalidInput)
	}
	return s.rooms.RoomByDedupKey(ctx, GroupDedupKey(lodgingID))
}

// RegisterMembership выдает (или перезаписывает) членство гостя в групповой
// комнате до expiresAt — времени окончания проживания. Прошедший expiresAt
// не отклоняется: такая запись просто сразу читается как отсутствующая
func (s *Service) RegisterMembership(ctx context.Context, roomID uuid.UUID, userID string, lodgingID int, expiresAt time.Time) error {
	userID = NormalizeUserID(userID)
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if lodgingID <= 0 {
		return fmt.Errorf("%w: accommodationId is required", ErrInvalidInput)
	}
	if expiresAt.IsZero() {
		return fmt.Errorf("%w: expiresAt is required", ErrInvalidInput)
	}

	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Kind != models.RoomKindGroup {
		return fmt.Errorf("%w: memberships attach to accommodation rooms only", ErrInvalidInput)
	}
	if room.LodgingID != lodgingID {
		return fmt.Errorf("%w: accommodationId does not match the room", ErrInvalidInput)
	}

	return s.members.Upsert(ctx, &models.Membership{
		RoomID:    room.ID,
		UserID:    userID,
		LodgingID: lodgingID,
		ExpiresAt: expiresAt.UTC(),
	})
}

// RequestDM создает или возвращает DM-комнату пары в рамках жилья.
// Оба участника обязаны иметь живое членство в групповой комнате;
// срок жизни DM при каждом вызове пересчитывается как минимум
// из сроков двух членств
func (s *Service) RequestDM(ctx context.Context, lodgingID int, userA, userB string) (*models.Room, error) {
	if lodgingID <= 0 {
		return nil, fmt.Errorf("%w: accommodationId is required", ErrInvalidInput)
	}

	a, b, err := NormalizePair(userA, userB)
	if err != nil {
		return nil, err
	}

	now := s.now()

	group, err := s.rooms.RoomByDedupKey(ctx, GroupDedupKey(lodgingID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no accommodation room for this lodging", ErrForbidden)
		}
		return nil, err
	}

	expiry, err := s.dmExpiry(ctx, group.ID, a, b, now)
	if err != nil {
		return nil, err
	}

	key := DMDedupKey(lodgingID, a, b)
	mu := s.keys.lock(key)
	defer mu.Unlock()

	// Истекшая, но еще не убранная DM-строка здесь тоже находится —
	// живые членства обоих участников дают ей новый expiry в будущем
	room, err := s.rooms.RoomByDedupKey(ctx, key)
	if err == nil {
		if err := s.rooms.UpdateRoomExpiry(ctx, room.ID, expiry); err != nil {
			return nil, err
		}
		room.ExpiresAt = &expiry
		return room, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	room = &models.Room{
		Kind:         models.RoomKindDM,
		LodgingID:    lodgingID,
		DedupKey:     key,
		Participants: []string{a, b},
		ExpiresAt:    &expiry,
	}

	// Upsert, а не Create: другой инстанс мог успеть создать комнату
	// между выборкой и вставкой
	if err := s.rooms.UpsertDMRoom(ctx, room); err != nil {
		return nil, err
	}

	s.logger.Infow("dm room ready", "room_id", room.ID, "accommodation_id", lodgingID, "expires_at", expiry)
	return room, nil
}

// Room возвращает комнату по id; истекшие DM читаются как отсутствующие
// независимо от того, успела ли их убрать фоновая уборка
func (s *Service) Room(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	return s.freshRoom(ctx, roomID, s.now())
}

// Messages отдает историю комнаты по возрастанию created_at
func (s *Service) Messages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	now := s.now()
	if _, err := s.freshRoom(ctx, roomID, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid roomId", ErrInvalidInput)
		}
		return nil, err
	}
	return s.messages.MessagesByRoom(ctx, roomID, now)
}

// freshRoom применяет обязательную проверку свежести на чтении
func (s *Service) freshRoom(ctx context.Context, roomID uuid.UUID, now time.Time) (*models.Room, error) {
	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Expired(now) {
		return nil, ErrNotFound
	}
	return room, nil
}

// Join проверяет, можно ли подписаться на комнату. Вход в групповую
// комнату по умолчанию свободный — гейтится только отправка
func (s *Service) Join(ctx context.Context, roomID uuid.UUID, userID string) (*models.Room, error) {
	now := s.now()

	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := CanJoin(room, now); err != nil {
		return nil, err
	}

	if s.gateJoin && room.Kind == models.RoomKindGroup {
		m, err := s.membership(ctx, room.ID, NormalizeUserID(userID), now)
		if err != nil {
			return nil, err
		}
		if err := CanSendGroup(m, now); err != nil {
			return nil, err
		}
	}

	return room, nil
}

// Send заново проверяет право на отправку (членство могло истечь прямо
// посреди сессии), сохраняет сообщение и рассылает его подписчикам.
// Сохранение и рассылка сериализованы по комнате, чтобы порядок доставки
// совпадал с порядком записи в журнал
func (s *Service) Send(ctx context.Context, roomID uuid.UUID, senderID, content, msgType string) (*models.Message, error) {
	senderID = NormalizeUserID(senderID)
	if senderID == "" {
		return nil, fmt.Errorf("%w: senderId is required", ErrInvalidInput)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	switch msgType {
	case "":
		msgType = models.MessageTypeText
	case models.MessageTypeText, models.MessageTypeImage, models.MessageTypeSystem:
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, msgType)
	}

	mu := s.keys.lock("send:" + roomID.String())
	defer mu.Unlock()

	now := s.now()

	// Намеренно без проверки свежести: отправка в истекшую DM должна дойти
	// до refreshDM и вернуть Forbidden, а не NotFound
	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		RoomID:    room.ID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		CreatedAt: now,
	}

	switch room.Kind {
	case models.RoomKindGroup:
		m, err := s.membership(ctx, room.ID, senderID, now)
		if err != nil {
			return nil, err
		}
		if err := CanSendGroup(m, now); err != nil {
			return nil, err
		}

	case models.RoomKindDM:
		expiry, err := s.refreshDM(ctx, room, senderID, now)
		if err != nil {
			return nil, err
		}
		// Сообщение в DM живет ровно столько же, сколько сама комната
		msg.ExpiresAt = &expiry
	}

	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	if s.pub != nil {
		s.pub.Publish(msg)
	}

	return msg, nil
}

// refreshDM пересчитывает expiry DM-комнаты из текущих членств участников
// (refresh-on-send) и решает, можно ли отправителю писать
func (s *Service) refreshDM(ctx context.Context, room *models.Room, senderID string, now time.Time) (time.Time, error) {
	if len(room.Participants) != 2 {
		return time.Time{}, fmt.Errorf("%w: malformed dm room", ErrInvalidInput)
	}
	if senderID != room.Participants[0] && senderID != room.Participants[1] {
		return time.Time{}, fmt.Errorf("%w: not a participant of this dm", ErrForbidden)
	}

	group, err := s.rooms.RoomByDedupKey(ctx, GroupDedupKey(room.LodgingID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: no accommodation room for this lodging", ErrForbidden)
		}
		return time.Time{}, err
	}

	expiry, err := s.dmExpiry(ctx, group.ID, room.Participants[0], room.Participants[1], now)
	if err != nil {
		return time.Time{}, err
	}

	// Перезапись минимума коммутативна, last-write-wins при
	// конкурентных отправках безопасен
	if err := s.rooms.UpdateRoomExpiry(ctx, room.ID, expiry); err != nil {
		return time.Time{}, err
	}
	room.ExpiresAt = &expiry

	if !now.Before(expiry) {
		return time.Time{}, fmt.Errorf("%w: dm expired", ErrForbidden)
	}
	return expiry, nil
}

// dmExpiry требует живые членства обоих участников и возвращает минимум
// из их сроков
func (s *Service) dmExpiry(ctx context.Context, groupRoomID uuid.UUID, a, b string, now time.Time) (time.Time, error) {
	ma, err := s.membership(ctx, groupRoomID, a, now)
	if err != nil {
		return time.Time{}, err
	}
	mb, err := s.membership(ctx, groupRoomID, b, now)
	if err != nil {
		return time.Time{}, err
	}
	if ma == nil || !ma.Live(now) || mb == nil || !mb.Live(now) {
		return time.Time{}, fmt.Errorf("%w: both guests need an active stay", ErrForbidden)
	}
	return DMExpiry(ma.ExpiresAt, mb.ExpiresAt), nil
}

// membership возвращает (nil, nil) вместо ErrNotFound: отсутствие записи —
// обычный исход, решение принимают CanSend*-проверки
func (s *Service) membership(ctx context.Context, roomID uuid.UUID, userID string, now time.Time) (*models.Membership, error) {
	m, err := s.members.Get(ctx, roomID, userID, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func dedupParticipants(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = NormalizeUserID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// keyedMutex выдает мьютекс на строковый ключ. Мьютексы не освобождаются:
// ключей столько же, сколько комнат, это ограниченное множество
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m
}
