package routes

import (
	"aegisnet/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterProcessRoutes(r gin.IRouter, ctl *controllers.Controller) {
	r.GET("/agents/:agent_id/processes", ctl.GetAgentProcesses)
}
