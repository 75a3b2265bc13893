package routes

import (
	"aegisnet/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterJournalRoutes registers alert, action and attack state endpoints
func RegisterJournalRoutes(r gin.IRouter, ctl *controllers.Controller) {
	r.GET("/alerts", ctl.ListAlerts)
	r.GET("/actions", ctl.ListActions)
	r.POST("/actions", ctl.LogAction)

	r.GET("/attack", ctl.GetAttackFlag)
	r.DELETE("/attack", ctl.ClearAttackFlag)
	r.GET("/windows/latest", ctl.GetLatestWindow)
}
