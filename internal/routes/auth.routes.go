package routes

import (
	"aegisnet/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers WebSocket routes only.
// Tokens are issued through the CLI, never over HTTP.
func RegisterAuthRoutes(r gin.IRouter, ctl *controllers.Controller) {
	r.GET("/ws", ctl.HandleWebSocket)
}
