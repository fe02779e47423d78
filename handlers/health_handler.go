package handlers

import (
	"net/http"

	"github.com/NomadCrew/nomad-crew-ocr/types"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	healthService HealthChecker
}

func NewHealthHandler(healthService HealthChecker) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

// LivenessCheck handles kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// HealthCheck godoc
// @Summary Service health
// @Description Reports cache, recognition pool and archive state. Answers 503 while the recognition pool cannot take work.
// @Tags health
// @Produce json
// @Success 200 {object} types.HealthCheck "Service is up or degraded"
// @Failure 503 {object} types.HealthCheck "Recognition pool is down"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := h.healthService.CheckHealth(c.Request.Context())

	if health.Status == types.HealthStatusDown {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}
