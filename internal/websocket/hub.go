package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/models"
)

// Имена событий совпадают с протоколом фронтенда
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventNewMessage  = "newMessage"
	EventError       = "errorMessage"
)

// Event — конверт всех сообщений по сокету в обе стороны
type Event struct {
	Type      string          `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub держит активные соединения и их подписки на комнаты
type Hub struct {
	clients map[uuid.UUID]*Client

	// Подписчики по комнатам
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	logger *zap.SugaredLogger

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run запускает цикл hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Infow("socket connected", "client_id", client.ID, "user_id", client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	// Снимаем все подписки соединения
	for roomID := range client.Rooms {
		h.removeFromRoomLocked(client, roomID)
	}

	delete(h.clients, client.ID)
	close(client.Send)

	h.logger.Infow("socket disconnected", "client_id", client.ID, "user_id", client.UserID)
}

// JoinRoom подписывает соединение на комнату. Проверка существования
// комнаты происходит до вызова, на уровне обработчика событий
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][client.ID] = client

	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()
}

func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client, roomID)
}

func (h *Hub) removeFromRoomLocked(client *Client, roomID uuid.UUID) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}

	delete(room, client.ID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}

	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()
}

// SendToRoom доставляет payload всем подписчикам комнаты. Доставка
// best-effort: переполненная очередь клиента не блокирует остальных
func (h *Hub) SendToRoom(roomID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warnw("client send queue full, dropping", "client_id", client.ID)
		}
	}
}

// Publish упаковывает сохраненное сообщение в событие newMessage
// и рассылает его подписчикам комнаты (реализует chat.Publisher)
func (h *Hub) Publish(msg *models.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorw("marshal message", "error", err)
		return
	}

	ev := Event{
		Type:      EventNewMessage,
		RoomID:    &msg.RoomID,
		Data:      data,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorw("marshal event", "error", err)
		return
	}

	h.SendToRoom(msg.RoomID, payload)
}

// RoomSubscribers возвращает количество подписчиков комнаты
func (h *Hub) RoomSubscribers(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
