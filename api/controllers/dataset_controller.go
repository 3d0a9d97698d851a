/*
 * @module api/controllers/dataset_controller
 * @description Data loading controller: fetches Socrata datasets into the raw-batch slot and ingests uploaded population spreadsheets
 * @architecture MVC architecture - controller layer
 * @documentReference client/socrata_client.go, service/loader/excel_loader.go
 * @stateFlow fetch/upload -> batch stored in session slot -> pipeline run reads it
 * @rules A failed fetch or parse aborts only the load step; prior session state stays untouched
 * @dependencies encoding/json, net/http, opendata-service/client, opendata-service/service/loader
 * @refs api/routes.go
 */

package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"opendata-service/client"
	"opendata-service/service"
	"opendata-service/service/loader"
	"opendata-service/service/meta"
	"opendata-service/service/metrics"
	"opendata-service/service/models"
	"opendata-service/service/session"
)

// maxUploadBytes caps population file uploads.
const maxUploadBytes = 32 << 20

// DatasetController loads raw batches into sessions.
type DatasetController struct{}

// NewDatasetController creates a dataset controller instance.
func NewDatasetController() *DatasetController {
	return &DatasetController{}
}

// FetchRequest is the fetch request body.
type FetchRequest struct {
	Limit int `json:"limit" example:"5000"`
}

// FetchResponse reports the stored raw batch.
type FetchResponse struct {
	Dataset string `json:"dataset"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	Cached  bool   `json:"cached"`
}

// Fetch
// @Summary Fetch dataset
// @Description Fetches a supported open dataset from datos.gov.co into the session's raw-batch slot, memoized per process
// @Tags datasets
// @Accept json
// @Produce json
// @Param id path string true "session id"
// @Param dataset path string true "dataset name (education, procurement)"
// @Param request body FetchRequest false "fetch options"
// @Success 200 {object} APIResponse{data=FetchResponse}
// @Failure 400 {object} APIResponse
// @Failure 502 {object} APIResponse
// @Router /sessions/{id}/datasets/{dataset}/fetch [post]
func (c *DatasetController) Fetch(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	datasetName := chi.URLParam(r, "dataset")
	cfg := meta.GetDataset(datasetName)
	if cfg == nil {
		Fail(w, r, http.StatusBadRequest, "unknown dataset: "+datasetName)
		return
	}

	var req FetchRequest
	if r.Body != nil {
		// An empty body means defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}

	ctx := r.Context()
	batch, cached := service.GlobalFetchCache.Get(ctx, cfg.ResourceID, limit)
	if !cached {
		var err error
		batch, err = client.FetchDataset(ctx, cfg.ResourceID, limit)
		if err != nil {
			// FetchError aborts only the load step; session state is untouched.
			metrics.FetchRequests.WithLabelValues(cfg.ResourceID, "error").Inc()
			Fail(w, r, http.StatusBadGateway, err.Error())
			return
		}
		metrics.FetchRequests.WithLabelValues(cfg.ResourceID, "ok").Inc()
		service.GlobalFetchCache.Put(ctx, cfg.ResourceID, limit, batch)
	} else {
		metrics.FetchRequests.WithLabelValues(cfg.ResourceID, "cache_hit").Inc()
	}

	s.Set(session.SlotDataset, cfg.Name)
	s.Set(session.SlotRawBatch, batch)
	s.ClearDerived()

	slog.Info("dataset: raw batch loaded",
		"session", s.ID, "dataset", cfg.Name, "rows", len(batch.Records), "cached", cached)
	OK(w, r, FetchResponse{
		Dataset: cfg.Name,
		Rows:    len(batch.Records),
		Columns: len(batch.Columns),
		Cached:  cached,
	})
}

// UploadResponse reports the stored population batch.
type UploadResponse struct {
	Files int `json:"files"`
	Rows  int `json:"rows"`
}

// UploadPopulation
// @Summary Upload population reference
// @Description Ingests one or more DANE population projection xlsx files into the session's population slot; multiple files are concatenated
// @Tags datasets
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "session id"
// @Param files formData file true "xlsx files"
// @Success 200 {object} APIResponse{data=UploadResponse}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/population [post]
func (c *DatasetController) UploadPopulation(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		Fail(w, r, http.StatusBadRequest, "invalid multipart request: "+err.Error())
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		Fail(w, r, http.StatusBadRequest, "no files uploaded under field 'files'")
		return
	}

	batches := make([]*models.RawBatch, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			Fail(w, r, http.StatusBadRequest, "cannot open upload "+header.Filename+": "+err.Error())
			return
		}
		batch, err := loader.Load(file, header.Filename)
		file.Close()
		if err != nil {
			// ParseError aborts only this load; session state untouched.
			Fail(w, r, http.StatusBadRequest, err.Error())
			return
		}
		batches = append(batches, batch)
	}

	combined := loader.Concat(batches...)
	s.Set(session.SlotPopulationBatch, combined)

	slog.Info("dataset: population batch loaded",
		"session", s.ID, "files", len(files), "rows", len(combined.Records))
	OK(w, r, UploadResponse{Files: len(files), Rows: len(combined.Records)})
}
