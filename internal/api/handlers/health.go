package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seidrlabs/demandcast/internal/database"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// HealthHandler reports service liveness plus the state of optional
// backing stores. A disabled store reports "disabled", not an error.
type HealthHandler struct {
	db    *database.PostgresDB
	redis *database.RedisClient
}

func NewHealthHandler(db *database.PostgresDB, redis *database.RedisClient) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Services: Services{
			Database: "disabled",
			Redis:    "disabled",
		},
	}

	if h.db != nil {
		response.Services.Database = "ok"
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}
	}

	if h.redis != nil {
		response.Services.Redis = "ok"
		if err := h.redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
