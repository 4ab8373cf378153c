package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/chat"
	"github.com/jhjj/staychat/internal/handlers/dto"
	"github.com/jhjj/staychat/internal/middleware"
)

type RoomHandler struct {
	svc    *chat.Service
	logger *zap.SugaredLogger
}

func NewRoomHandler(svc *chat.Service, logger *zap.SugaredLogger) *RoomHandler {
	return &RoomHandler{svc: svc, logger: logger}
}

// CreateAccommodationRoom идемпотентно создает групповую комнату жилья
func (h *RoomHandler) CreateAccommodationRoom(c *gin.Context) {
	var req dto.CreateAccommodationRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.svc.ProvisionGroupRoom(c.Request.Context(), req.AccommodationID, req.ParticipantIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// GetAccommodationRoom возвращает групповую комнату жилья
func (h *RoomHandler) GetAccommodationRoom(c *gin.Context) {
	lodgingID, err := strconv.Atoi(c.Param("accommodationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid accommodationId"})
		return
	}

	room, err := h.svc.GroupRoom(c.Request.Context(), lodgingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// CreateDM открывает (или продлевает) личную комнату между вызывающим
// и вторым гостем того же жилья
func (h *RoomHandler) CreateDM(c *gin.Context) {
	callerID := c.MustGet(middleware.UserIDKey).(string)

	var req dto.CreateDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.svc.RequestDM(c.Request.Context(), req.AccommodationID, callerID, req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// GetRoom возвращает комнату по id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roomId"})
		return
	}

	room, err := h.svc.Room(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}
