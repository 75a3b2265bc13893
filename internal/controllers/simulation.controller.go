package controllers

import (
	"net/http"
	"strconv"

	"aegisnet/internal/middleware"
	"aegisnet/internal/services"

	"github.com/gin-gonic/gin"
)

// StartSimulation launches a background scenario run
// Query params: type=normal|cpu_spike|memory_overload|ddos|rogue_agent, agent_id, duration (ticks)
func (ctl *Controller) StartSimulation(c *gin.Context) {
	scenario := services.Scenario(c.DefaultQuery("type", string(services.ScenarioNormal)))
	agentID := c.DefaultQuery("agent_id", "sim-agent")
	if !middleware.ValidAgentID(agentID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent_id format"})
		return
	}

	duration := 0
	if raw := c.Query("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a positive integer"})
			return
		}
		duration = d
	}

	id, err := ctl.Simulator.Start(ctl.baseContext(), scenario, agentID, duration)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":       id,
		"scenario": scenario,
		"agent_id": agentID,
	})
}

// ListSimulations returns every run, newest first
func (ctl *Controller) ListSimulations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"runs":      ctl.Simulator.Runs(),
		"scenarios": services.Scenarios(),
	})
}

// StopSimulation cancels a running scenario
func (ctl *Controller) StopSimulation(c *gin.Context) {
	if err := ctl.Simulator.Stop(c.Param("id")); err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "stopped"})
}
