package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/blob"
	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/config"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/identity"
)

// ServerDeps bundles the services the HTTP surface exposes.
type ServerDeps struct {
	Identity *identity.Service
	Rooms    *chat.Rooms
	Pipeline *chat.SendPipeline
	Gateway  *gateway.Gateway
	Blob     blob.Store // nil disables attachment uploads
}

// NewServer builds the HTTP server with all routes wired.
func NewServer(deps ServerDeps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine used by the server. Exposed
// separately so tests can drive it through httptest.
func NewRouter(deps ServerDeps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(logger))

	engine.GET("/health", healthHandler)

	authHandlers := NewAuthHandlers(deps.Identity, logger)
	authGroup := engine.Group("/api/auth")
	authGroup.Use(AuthRateLimit(cfg.AuthRatePerMinute))
	{
		authGroup.POST("/register", authHandlers.Register)
		authGroup.POST("/login", authHandlers.Login)
	}

	chatHandlers := NewChatHandlers(deps.Rooms, deps.Pipeline, deps.Identity, deps.Blob, cfg.MaxAttachmentBytes, logger)
	chatGroup := engine.Group("/api/chat")
	chatGroup.Use(AuthMiddleware(deps.Identity, logger))
	{
		chatGroup.GET("/users", chatHandlers.ListChatPartners)
		chatGroup.GET("/rooms", chatHandlers.ListRooms)
		chatGroup.POST("/rooms/direct", chatHandlers.CreateDirectRoom)
		chatGroup.POST("/rooms/group", chatHandlers.CreateGroupRoom)
		chatGroup.GET("/rooms/:roomID/messages", chatHandlers.ListMessages)
		chatGroup.POST("/rooms/:roomID/messages", chatHandlers.SendMessage)
		chatGroup.POST("/rooms/:roomID/read", chatHandlers.MarkRead)
		chatGroup.POST("/attachments", chatHandlers.UploadAttachment)
	}

	wsHandler := NewWSHandler(deps.Identity, deps.Gateway, deps.Pipeline, cfg.EventBufferSize, logger)
	engine.GET("/ws", wsHandler.Handle)

	return engine
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
