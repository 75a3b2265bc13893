package routes

import (
	"aegisnet/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterIngestRoutes registers the agent-facing submission endpoints
func RegisterIngestRoutes(r gin.IRouter, ctl *controllers.Controller) {
	r.POST("/metrics", ctl.SubmitMetric)
	r.POST("/alerts", ctl.SubmitMetric)
}

// RegisterAgentRoutes registers the per-agent read endpoints
func RegisterAgentRoutes(r gin.IRouter, ctl *controllers.Controller) {
	agents := r.Group("/agents")
	{
		agents.GET("", ctl.ListAgents)
		agents.GET("/:agent_id/latest", ctl.GetLatest)
		agents.GET("/:agent_id/history", ctl.GetHistory)
	}

	profiles := r.Group("/profiles")
	{
		profiles.POST("", ctl.RegisterProfile)
		profiles.GET("", ctl.ListProfiles)
		profiles.GET("/:agent_id", ctl.GetProfile)
	}
}
