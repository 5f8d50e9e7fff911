package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hmelo/skyarena-server/internal/auth"
	"github.com/hmelo/skyarena-server/internal/config"
	"github.com/hmelo/skyarena-server/internal/dispatch"
)

// NewServer builds the HTTP server: REST endpoints for account handling and
// the WebSocket endpoint everything else flows through.
func NewServer(d *dispatch.Dispatcher, authService *auth.Service, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(LoggerMiddleware(logger), gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := NewAPIHandlers(authService, logger)
	engine.POST("/api/register", api.Register)
	engine.POST("/api/login", api.Login)
	engine.POST("/api/guest", api.Guest)

	ws := NewWSHandler(d, authService, cfg.MaxMessagesPerMinute, logger)
	engine.GET("/ws", ws.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
