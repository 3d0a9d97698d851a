/*
 * @module api/routes
 * @description API route configuration: wires the session, dataset, pipeline and analytics endpoints onto the chi mux
 * @architecture RESTful API architecture
 * @documentReference api/controllers
 * @stateFlow Stateless HTTP request handling over session-scoped pipeline state
 * @rules Follows RESTful design conventions with a unified response envelope and error handling
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs main.go
 */

package api

import (
	"opendata-service/api/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute initializes all API routes
func InitRoute(r *chi.Mux) {
	// Base middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// Session-scoped pipeline
	r.Route("/sessions", func(r chi.Router) {
		sessionController := controllers.NewSessionController()
		datasetController := controllers.NewDatasetController()
		pipelineController := controllers.NewPipelineController()
		analyticsController := controllers.NewAnalyticsController()

		r.Post("/", sessionController.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", sessionController.Get)
			r.Delete("/", sessionController.Delete)

			// Data loading
			r.Post("/datasets/{dataset}/fetch", datasetController.Fetch)
			r.Post("/population", datasetController.UploadPopulation)

			// Pipeline run and outputs
			r.Post("/pipeline/run", pipelineController.Run)
			r.Get("/dimensions/{name}", pipelineController.GetDimension)
			r.Get("/fact", pipelineController.GetFact)
			r.Get("/fact/export", pipelineController.ExportFact)

			// Aggregate views
			r.Route("/analytics", func(r chi.Router) {
				r.Get("/ranking", analyticsController.Ranking)
				r.Get("/summary", analyticsController.Summary)
				r.Get("/department-map", analyticsController.DepartmentMap)
				r.Get("/contract-rate", analyticsController.ContractRate)
				r.Get("/correlation", analyticsController.Correlation)
				r.Get("/monthly-evolution", analyticsController.MonthlyEvolution)
			})
		})
	})
}
