package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/jhjj/staychat/internal/handlers"
	"github.com/jhjj/staychat/internal/middleware"
	"github.com/jhjj/staychat/pkg/auth"
)

func APIEndpoints(r *gin.Engine, roomH *handlers.RoomHandler, msgH *handlers.MessageHandler, wsH *handlers.WebSocketHandler, jwtMgr *auth.JWTManager, rdb *redis.Client) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// REST API: все маршруты требуют проверенного пользователя
	api := r.Group("/", middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.POST("/rooms/accommodation", roomH.CreateAccommodationRoom)
		api.GET("/rooms/accommodation/:accommodationId", roomH.GetAccommodationRoom)
		api.POST("/rooms/dm", roomH.CreateDM)
		api.GET("/rooms/:roomId", roomH.GetRoom)
		api.POST("/rooms/:roomId/members", roomH.RegisterMember)
		api.GET("/rooms/:roomId/messages", msgH.GetRoomMessages)
	}

	// WebSocket: токен принимается и query-параметром
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)
}
