package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-presence/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	WebSocket      http.HandlerFunc
	Presence       *PresenceHandler
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins, cfg.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", gin.WrapF(cfg.WebSocket))

	api := router.Group("/api/presence")
	{
		api.GET("/last-tick", cfg.Presence.LastTick)
		api.GET("/users/:id", cfg.Presence.GetUserPresence)
		api.GET("/rooms", cfg.Presence.ListRooms)
	}

	return router
}
