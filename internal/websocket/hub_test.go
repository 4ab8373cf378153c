package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/models"
)

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{
		ID:    uuid.New(),
		Send:  make(chan []byte, buffer),
		Rooms: make(map[uuid.UUID]bool),
		Hub:   hub,
	}
}

func TestJoinLeaveRoom(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	client := newTestClient(hub, 4)
	roomID := uuid.New()

	hub.JoinRoom(client, roomID)
	assert.Equal(t, 1, hub.RoomSubscribers(roomID))
	assert.True(t, client.Rooms[roomID])

	hub.LeaveRoom(client, roomID)
	assert.Equal(t, 0, hub.RoomSubscribers(roomID))
	assert.False(t, client.Rooms[roomID])
}

func TestSendToRoomBestEffort(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	roomID := uuid.New()

	healthy := newTestClient(hub, 4)
	hub.JoinRoom(healthy, roomID)

	// У этого клиента очередь уже забита
	stuck := newTestClient(hub, 1)
	stuck.Send <- []byte("old")
	hub.JoinRoom(stuck, roomID)

	hub.SendToRoom(roomID, []byte("payload"))

	select {
	case got := <-healthy.Send:
		assert.Equal(t, []byte("payload"), got)
	default:
		t.Fatal("healthy client did not receive payload")
	}

	// Переполненная очередь не блокирует рассылку и не растет
	assert.Len(t, stuck.Send, 1)
}

func TestPublishWrapsMessageEvent(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	roomID := uuid.New()
	client := newTestClient(hub, 4)
	hub.JoinRoom(client, roomID)

	msg := &models.Message{
		ID:       uuid.New(),
		RoomID:   roomID,
		SenderID: "a@x.com",
		Content:  "hello",
		Type:     models.MessageTypeText,
	}
	hub.Publish(msg)

	var payload []byte
	select {
	case payload = <-client.Send:
	default:
		t.Fatal("subscriber did not receive event")
	}

	var ev Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, EventNewMessage, ev.Type)
	require.NotNil(t, ev.RoomID)
	assert.Equal(t, roomID, *ev.RoomID)

	var got models.Message
	require.NoError(t, json.Unmarshal(ev.Data, &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hello", got.Content)
}

func TestPublishSkipsOtherRooms(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	client := newTestClient(hub, 4)
	hub.JoinRoom(client, uuid.New())

	hub.Publish(&models.Message{ID: uuid.New(), RoomID: uuid.New(), Content: "elsewhere"})
	assert.Len(t, client.Send, 0)
}

func TestUnregisterCleansSubscriptions(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	go hub.Run()
	defer hub.Stop()

	client := newTestClient(hub, 4)
	roomID := uuid.New()

	hub.Register(client)
	hub.JoinRoom(client, roomID)
	require.Equal(t, 1, hub.RoomSubscribers(roomID))

	hub.Unregister(client)

	require.Eventually(t, func() bool {
		return hub.RoomSubscribers(roomID) == 0
	}, time.Second, 10*time.Millisecond)

	// Hub закрывает очередь отключенного клиента
	_, open := <-client.Send
	assert.False(t, open)
}

func TestSendEventQueueFull(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	client := newTestClient(hub, 1)

	require.NoError(t, client.SendEvent(&Event{Type: EventNewMessage}))
	assert.ErrorIs(t, client.SendEvent(&Event{Type: EventNewMessage}), ErrClientQueueFull)
}

func TestSendErrorEvent(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	client := newTestClient(hub, 1)

	client.SendError("no active stay for this room")

	var ev Event
	require.NoError(t, json.Unmarshal(<-client.Send, &ev))
	assert.Equal(t, EventError, ev.Type)

	var data map[string]string
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "no active stay for this room", data["message"])
}
