package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/seidrlabs/demandcast/internal/api/handlers"
)

// SetupRoutes wires all HTTP routes onto the router. Both handlers are
// required; their optional backends (Postgres, Redis) may be nil inside.
func SetupRoutes(router *gin.Engine, health *handlers.HealthHandler, fc *handlers.ForecastHandler) {
	router.Use(otelgin.Middleware("demandcast"))

	router.GET("/health", health.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		forecastGroup := v1.Group("/forecast")
		{
			forecastGroup.POST("/run", fc.RunForecast)
			forecastGroup.POST("/compare", fc.CompareModels)
			forecastGroup.GET("/export", fc.ExportForecast)
			forecastGroup.GET("/runs", fc.ListRuns)
			forecastGroup.GET("/runs/:id", fc.GetRun)
		}

		v1.GET("/models", fc.GetModels)
	}
}
