package routes

import (
	"aegisnet/internal/controllers"
	"aegisnet/internal/middleware"

	"github.com/gin-gonic/gin"
)

// simulations spawn goroutines, so they get a much tighter budget than reads
const (
	simulationRPS   = 0.5
	simulationBurst = 5
)

func RegisterSimulationRoutes(r gin.IRouter, ctl *controllers.Controller) {
	sim := r.Group("/simulate")
	sim.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(simulationRPS, simulationBurst), ctl.Security))
	{
		sim.POST("", ctl.StartSimulation)
		sim.GET("", ctl.ListSimulations)
		sim.DELETE("/:id", ctl.StopSimulation)
	}
}
