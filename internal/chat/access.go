package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jhjj/staychat/internal/models"
)

// Чистые правила доступа. Никаких походов в хранилища —
// все нужные записи передаются снаружи вместе с текущим временем.

// NormalizeUserID приводит идентификатор пользователя (обычно email)
// к каноничному виду: обрезанный, в нижнем регистре
func NormalizeUserID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizePair нормализует пару участников DM и сортирует её,
// чтобы поиск комнаты не зависел от порядка аргументов
func NormalizePair(a, b string) (string, string, error) {
	a = NormalizeUserID(a)
	b = NormalizeUserID(b)

	if a == "" || b == "" {
		return "", "", fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	if a == b {
		return "", "", fmt.Errorf("%w: cannot open a dm with yourself", ErrInvalidInput)
	}

	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1], nil
}

// GroupDedupKey — ключ уникальности групповой комнаты жилья
func GroupDedupKey(lodgingID int) string {
	return fmt.Sprintf("group:%d", lodgingID)
}

// DMDedupKey — ключ уникальности DM-комнаты для (жилье, пара).
// Пара должна быть уже нормализована через NormalizePair
func DMDedupKey(lodgingID int, a, b string) string {
	return fmt.Sprintf("dm:%d:%s|%s", lodgingID, a, b)
}

// DMExpiry вычисляет срок жизни DM-комнаты: минимум из сроков
// членства обоих участников. Пересчитывается при каждом обращении,
// поэтому DM никогда не живет дольше самого короткого членства
func DMExpiry(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// CanJoin решает, можно ли подписаться на комнату. Групповые комнаты
// открыты для входа всем (право на отправку проверяется отдельно),
// DM должна существовать и не быть истекшей
func CanJoin(room *models.Room, now time.Time) error {
	if room == nil {
		return ErrNotFound
	}
	if room.Kind == models.RoomKindDM && room.Expired(now) {
		return ErrNotFound
	}
	return nil
}

// CanSendGroup решает, можно ли писать в групповую комнату:
// нужно живое членство на момент именно этой отправки
func CanSendGroup(m *models.Membership, now time.Time) error {
	if m == nil || !m.Live(now) {
		return fmt.Errorf("%w: no active stay for this room", ErrForbidden)
	}
	return nil
}
