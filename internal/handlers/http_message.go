package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/chat"
)

type MessageHandler struct {
	svc    *chat.Service
	logger *zap.SugaredLogger
}

func NewMessageHandler(svc *chat.Service, logger *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

// GetRoomMessages отдает историю комнаты от старых к новым
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roomId"})
		return
	}

	messages, err := h.svc.Messages(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}
