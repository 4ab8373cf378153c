package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jhjj/staychat/internal/handlers/dto"
)

// RegisterMember выдает гостю членство в групповой комнате до конца
// проживания. Вызывается системой бронирования после заселения,
// expiresAt — время выезда (UTC)
func (h *RoomHandler) RegisterMember(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roomId"})
		return
	}

	var req dto.RegisterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.RegisterMembership(c.Request.Context(), roomID, req.UserID, req.AccommodationID, req.ExpiresAt); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
