package controllers

import (
	"context"
	"errors"
	"net/http"

	"aegisnet/internal/archive"
	"aegisnet/internal/middleware"
	"aegisnet/internal/models"
	"aegisnet/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Controller holds everything the HTTP handlers reach into
type Controller struct {
	Pipeline  *services.Pipeline
	Ingester  services.Ingester
	Simulator *services.Simulator
	Flags     *services.AttackFlagStore
	WindowDir string
	Hub       *services.WebSocketHub
	Auth      *services.AuthService
	Archive   *archive.Archive

	AllowedOrigins []string
	Security       *middleware.SecurityLogger
	Logger         *zap.Logger

	// BaseContext outlives requests; background simulations derive from it
	BaseContext context.Context
}

func (ctl *Controller) store() *services.Store {
	return ctl.Pipeline.Store()
}

func (ctl *Controller) ingester() services.Ingester {
	if ctl.Ingester != nil {
		return ctl.Ingester
	}
	return ctl.Pipeline
}

func (ctl *Controller) baseContext() context.Context {
	if ctl.BaseContext != nil {
		return ctl.BaseContext
	}
	return context.Background()
}

// writeError maps engine errors onto HTTP statuses
func (ctl *Controller) writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, services.ErrUnknownScenario):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAuthDisabled):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, archive.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		if ctl.Logger != nil {
			ctl.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Health reports liveness
func (ctl *Controller) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
