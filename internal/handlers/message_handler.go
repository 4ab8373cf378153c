package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/chat"
	"github.com/jhjj/staychat/internal/handlers/dto"
	ws "github.com/jhjj/staychat/internal/websocket"
)

// ChatEventHandler обрабатывает события joinRoom/leaveRoom/sendMessage.
// Право на отправку перепроверяется сервисом при каждом событии —
// членство может истечь посреди сессии
type ChatEventHandler struct {
	svc    *chat.Service
	hub    *ws.Hub
	logger *zap.SugaredLogger
}

func NewChatEventHandler(svc *chat.Service, hub *ws.Hub, logger *zap.SugaredLogger) *ChatEventHandler {
	return &ChatEventHandler{svc: svc, hub: hub, logger: logger}
}

func (h *ChatEventHandler) HandleEvent(client *ws.Client, ev *ws.Event) error {
	switch ev.Type {
	case ws.EventJoinRoom:
		return h.handleJoin(client, ev)

	case ws.EventLeaveRoom:
		if ev.RoomID == nil {
			return fmt.Errorf("%w: roomId is required", chat.ErrInvalidInput)
		}
		h.hub.LeaveRoom(client, *ev.RoomID)
		return nil

	case ws.EventSendMessage:
		return h.handleSend(client, ev)

	default:
		h.logger.Warnw("unknown event type", "type", ev.Type, "client_id", client.ID)
		return nil
	}
}

// handleJoin подписывает соединение на комнату. Комната должна
// существовать (и не быть истекшей DM) — иных условий входа нет
func (h *ChatEventHandler) handleJoin(client *ws.Client, ev *ws.Event) error {
	if ev.RoomID == nil {
		return fmt.Errorf("%w: roomId is required", chat.ErrInvalidInput)
	}

	if _, err := h.svc.Join(context.Background(), *ev.RoomID, client.UserID); err != nil {
		return err
	}

	h.hub.JoinRoom(client, *ev.RoomID)
	return nil
}

// handleSend сохраняет сообщение; рассылку newMessage по подписчикам
// делает сервис после записи в журнал
func (h *ChatEventHandler) handleSend(client *ws.Client, ev *ws.Event) error {
	if ev.RoomID == nil {
		return fmt.Errorf("%w: roomId is required", chat.ErrInvalidInput)
	}

	var payload dto.MessagePayload
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return ws.ErrInvalidEvent
		}
	}

	// Отправитель — проверенная личность соединения, из payload он не берется
	_, err := h.svc.Send(context.Background(), *ev.RoomID, client.UserID, payload.Content, payload.Type)
	return err
}
