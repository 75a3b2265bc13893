package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAgentProcesses returns the top processes from an agent's latest record
func (ctl *Controller) GetAgentProcesses(c *gin.Context) {
	agentID := c.Param("agent_id")
	rec, ok := ctl.store().Latest(agentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metrics for agent " + agentID})
		return
	}

	var totalCPU float64
	for _, p := range rec.PerProcess {
		totalCPU += p.CPU
	}
	c.JSON(http.StatusOK, gin.H{
		"processes":         rec.PerProcess,
		"total_cpu_percent": totalCPU,
		"last_updated":      rec.Timestamp,
	})
}
