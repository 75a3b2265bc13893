package controllers

import (
	"net/http"
	"time"

	"aegisnet/internal/middleware"
	"aegisnet/internal/models"

	"github.com/gin-gonic/gin"
)

// RegisterProfile makes an agent recognized
func (ctl *Controller) RegisterProfile(c *gin.Context) {
	var profile models.AgentProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile: " + err.Error()})
		return
	}
	if !middleware.ValidAgentID(profile.AgentID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent_id format"})
		return
	}
	if profile.RegisteredAt.IsZero() {
		profile.RegisteredAt = time.Now().UTC()
	}
	if err := ctl.store().RegisterProfile(profile); err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// ListProfiles returns every registered profile
func (ctl *Controller) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": ctl.store().Profiles()})
}

// GetProfile returns one profile and whether the agent is recognized
func (ctl *Controller) GetProfile(c *gin.Context) {
	agentID := c.Param("agent_id")
	profile, ok := ctl.store().Profile(agentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"agent_id": agentID, "recognized": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile, "recognized": true})
}
