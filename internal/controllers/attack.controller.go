package controllers

import (
	"net/http"

	"aegisnet/internal/services"

	"github.com/gin-gonic/gin"
)

// GetAttackFlag reports the persisted attack flag
func (ctl *Controller) GetAttackFlag(c *gin.Context) {
	flag, ok, err := ctl.Flags.Get()
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"attack_detected": false})
		return
	}
	c.JSON(http.StatusOK, flag)
}

// ClearAttackFlag removes the attack flag after an operator has responded
func (ctl *Controller) ClearAttackFlag(c *gin.Context) {
	if err := ctl.Flags.Clear(); err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "cleared"})
}

// GetLatestWindow returns the most recent closed window log
func (ctl *Controller) GetLatestWindow(c *gin.Context) {
	entry, ok, err := services.LatestWindowLog(ctl.WindowDir)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no windows closed yet"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
