package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type operatorActionRequest struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

// ListAlerts returns the in-memory alert journal, or the archive when ?archived=true
func (ctl *Controller) ListAlerts(c *gin.Context) {
	if c.Query("archived") == "true" {
		if ctl.Archive == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "archive disabled"})
			return
		}
		alerts, err := ctl.Archive.RecentAlerts(c.Request.Context(), queryLimit(c))
		if err != nil {
			ctl.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": alerts})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": ctl.store().ListAlerts()})
}

// ListActions returns the action journal, or the archive when ?archived=true
func (ctl *Controller) ListActions(c *gin.Context) {
	if c.Query("archived") == "true" {
		if ctl.Archive == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "archive disabled"})
			return
		}
		actions, err := ctl.Archive.RecentActions(c.Request.Context(), queryLimit(c))
		if err != nil {
			ctl.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"actions": actions})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": ctl.store().ListActions()})
}

// LogAction records an operator action
func (ctl *Controller) LogAction(c *gin.Context) {
	var req operatorActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action: " + err.Error()})
		return
	}
	action, err := ctl.Pipeline.LogOperatorAction(req.Action, req.Target)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, action)
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return 0
	}
	return limit
}
