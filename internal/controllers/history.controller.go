package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ListAgents returns the latest record of every agent
func (ctl *Controller) ListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": ctl.store().LatestAll()})
}

// GetLatest returns the current record for one agent
func (ctl *Controller) GetLatest(c *gin.Context) {
	agentID := c.Param("agent_id")
	rec, ok := ctl.store().Latest(agentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metrics for agent " + agentID})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetHistory returns an agent's buffered series oldest first
// Query params: duration=30s|5m|1h (default: whole buffer)
func (ctl *Controller) GetHistory(c *gin.Context) {
	agentID := c.Param("agent_id")
	durationStr := c.Query("duration")

	if durationStr == "" {
		c.JSON(http.StatusOK, gin.H{
			"agent_id": agentID,
			"data":     ctl.store().History(agentID),
		})
		return
	}

	duration, err := time.ParseDuration(durationStr)
	if err != nil || duration <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration format"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"agent_id": agentID,
		"duration": durationStr,
		"data":     ctl.store().HistorySince(agentID, time.Now().Add(-duration)),
	})
}
