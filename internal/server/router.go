// Package server wires the REST and WebSocket surfaces.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"mobile-chat/server/internal/auth/handler"
	"mobile-chat/server/internal/server/middleware"
	"mobile-chat/server/internal/ws"
)

// NewRouter wires gin routes and middleware. Signup, signin, and refresh are
// public (refresh carries its own guard inside the service); everything else
// under /auth requires a valid access token.
func NewRouter(serviceName string, log *zap.Logger, guard *middleware.Auth, authHandler *handler.AuthHandler, wsHandler *ws.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(otelgin.Middleware(serviceName))

	auth := r.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/signin", authHandler.Signin)
		auth.POST("/refresh", authHandler.Refresh)

		auth.POST("/logout", guard.RequireAuth, authHandler.Logout)
		auth.POST("/logout-others", guard.RequireAuth, authHandler.LogoutOthers)
		auth.POST("/logout-all", guard.RequireAuth, authHandler.LogoutAll)
		auth.GET("/sessions", guard.RequireAuth, authHandler.Sessions)
	}

	// WebSocket handshake authenticates inside the handler, not via the HTTP
	// guard: failures must reach the client as an auth:error event before
	// close rather than as a 401.
	r.GET("/ws", wsHandler.Serve)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
