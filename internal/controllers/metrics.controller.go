package controllers

import (
	"net/http"

	"aegisnet/internal/middleware"
	"aegisnet/internal/models"

	"github.com/gin-gonic/gin"
)

// SubmitMetric ingests one MetricRecord and returns the alerts it raised
func (ctl *Controller) SubmitMetric(c *gin.Context) {
	var rec models.MetricRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metric record: " + err.Error()})
		return
	}

	// an authenticated agent may only report for itself
	if agentID := c.GetString(middleware.ContextAgentID); agentID != "" && agentID != rec.AgentID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not match agent_id"})
		return
	}

	alerts, err := ctl.ingester().Submit(c.Request.Context(), rec)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	if len(alerts) == 0 {
		c.JSON(http.StatusOK, gin.H{"msg": "OK", "alerts": alerts})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
