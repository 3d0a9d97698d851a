/*
 * @module api/controllers/health_controller
 * @description Health check controller for container probes and load balancers
 * @architecture MVC architecture - controller layer
 * @documentReference api/routes.go
 * @stateFlow Stateless HTTP request handling
 * @rules Health endpoints never touch session state
 * @dependencies net/http, github.com/go-chi/render
 * @refs main.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthController serves the health endpoints.
type HealthController struct{}

// NewHealthController creates a health controller instance.
func NewHealthController() *HealthController {
	return &HealthController{}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version   string    `json:"version" example:"1.0.0"`
	Service   string    `json:"service" example:"opendata-service"`
}

// Health
// @Summary Health check
// @Description Reports service liveness
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Service:   "opendata-service",
	})
}

// Ready
// @Summary Readiness check
// @Description Reports whether the service is ready to accept requests
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Service:   "opendata-service",
	})
}
