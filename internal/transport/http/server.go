package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/talkline/talkline-server/internal/config"
	"github.com/talkline/talkline-server/internal/core"
	"github.com/talkline/talkline-server/internal/store"
)

// NewServer builds the HTTP server: websocket endpoint plus read-only REST API.
func NewServer(hub *core.Hub, st store.MessageStore, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(hub, st, cfg.HistoryLimit, logger)
	router.GET("/health", api.Health)
	router.GET("/api/messages", api.BroadcastHistory)
	router.GET("/api/messages/:identity", api.ParticipantHistory)
	router.GET("/api/online", api.OnlineUsers)

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.MessageRateLimit, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
