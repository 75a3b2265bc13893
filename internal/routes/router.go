package routes

import (
	"aegisnet/internal/config"
	"aegisnet/internal/controllers"
	"aegisnet/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires middleware and every route group onto a fresh engine
func NewRouter(ctl *controllers.Controller, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(ctl.Logger))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), ctl.Security))

	r.GET("/healthz", ctl.Health)
	r.GET("/prometheus", gin.WrapH(promhttp.Handler()))

	// a typed nil *AuthService must not reach the middleware as a non-nil interface
	var validator middleware.TokenValidator
	if ctl.Auth != nil {
		validator = ctl.Auth
	}
	api := r.Group("/")
	api.Use(middleware.AgentAuthMiddleware(validator, ctl.Security))

	RegisterIngestRoutes(api, ctl)
	RegisterAgentRoutes(api, ctl)
	RegisterProcessRoutes(api, ctl)
	RegisterJournalRoutes(api, ctl)
	RegisterSimulationRoutes(api, ctl)
	RegisterAuthRoutes(r, ctl)

	return r
}
