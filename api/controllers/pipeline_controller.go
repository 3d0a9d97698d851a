/*
 * @module api/controllers/pipeline_controller
 * @description Pipeline controller: runs the transformation pipeline for the session's dataset and exposes the resulting dimensions, fact table and xlsx export
 * @architecture MVC architecture - controller layer
 * @documentReference service/pipeline/pipeline.go
 * @stateFlow raw/population slots -> pipeline run -> derived slots -> reads/export
 * @rules A SchemaError aborts the run and names the offending columns; re-running replaces the prior run's derived slots
 * @dependencies net/http, github.com/go-chi/chi/v5, github.com/spf13/cast, opendata-service/service/pipeline
 * @refs api/routes.go
 */

package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"opendata-service/service/loader"
	"opendata-service/service/meta"
	"opendata-service/service/models"
	"opendata-service/service/pipeline"
	"opendata-service/service/session"
)

// PipelineController runs pipelines and serves their outputs.
type PipelineController struct{}

// NewPipelineController creates a pipeline controller instance.
func NewPipelineController() *PipelineController {
	return &PipelineController{}
}

// RunResponse summarizes one pipeline run.
type RunResponse struct {
	Dataset      string                     `json:"dataset"`
	CleanStats   models.CleanStats          `json:"clean_stats"`
	Enrichment   *pipeline.EnrichmentResult `json:"enrichment,omitempty"`
	TimeRows     int                        `json:"time_dimension_rows,omitempty"`
	GeoRows      int                        `json:"geo_dimension_rows,omitempty"`
	FactStats    *models.FactStats          `json:"fact_stats,omitempty"`
	StarSchema   bool                       `json:"star_schema"`
	EnrichedWith string                     `json:"enriched_with,omitempty"`
}

// Run
// @Summary Run pipeline
// @Description Runs clean -> enrich -> dimensions -> fact for star-schema datasets, or clean alone for the others, replacing prior derived slots
// @Tags pipeline
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} APIResponse{data=RunResponse}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/pipeline/run [post]
func (c *PipelineController) Run(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	raw, cfg, ok := requireRawBatch(w, r, s)
	if !ok {
		return
	}

	if len(cfg.TimeKeyColumns) == 0 {
		// Dataset modelled without a star schema: clean only.
		cleanResult, err := pipeline.RunClean(cfg, raw)
		if err != nil {
			failPipelineError(w, r, err)
			return
		}
		s.ClearDerived()
		s.Set(session.SlotCleanBatch, &cleanResult.Batch)
		s.Set(session.SlotCleanStats, cleanResult.Stats)
		OK(w, r, RunResponse{Dataset: cfg.Name, CleanStats: cleanResult.Stats})
		return
	}

	var population *models.RawBatch
	if v, ok := s.Get(session.SlotPopulationBatch); ok {
		population = v.(*models.RawBatch)
	}

	result, err := pipeline.RunStarSchema(cfg, raw, population)
	if err != nil {
		failPipelineError(w, r, err)
		return
	}

	s.ClearDerived()
	workingBatch := &result.Clean.Batch
	if result.Enrichment != nil {
		workingBatch = &result.Enrichment.Batch
		s.Set(session.SlotEnrichment, result.Enrichment)
	}
	s.Set(session.SlotCleanBatch, workingBatch)
	s.Set(session.SlotCleanStats, result.Clean.Stats)
	s.Set(session.SlotTimeDimension, result.TimeDimension)
	s.Set(session.SlotGeoDimension, result.GeoDimension)
	s.Set(session.SlotFactTable, &result.Fact.Table)
	s.Set(session.SlotFactStats, result.Fact.Stats)

	resp := RunResponse{
		Dataset:    cfg.Name,
		CleanStats: result.Clean.Stats,
		Enrichment: result.Enrichment,
		TimeRows:   len(result.TimeDimension.Rows),
		GeoRows:    len(result.GeoDimension.Rows),
		FactStats:  &result.Fact.Stats,
		StarSchema: true,
	}
	if result.Enrichment != nil {
		resp.EnrichedWith = "population"
	}
	OK(w, r, resp)
}

// GetDimension
// @Summary Read dimension
// @Description Returns a dimension table from the last pipeline run
// @Tags pipeline
// @Produce json
// @Param id path string true "session id"
// @Param name path string true "dimension name (tiempo, geo)"
// @Success 200 {object} APIResponse{data=models.DimensionTable}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/dimensions/{name} [get]
func (c *PipelineController) GetDimension(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var slot string
	switch name := chi.URLParam(r, "name"); name {
	case pipeline.TimeDimensionName:
		slot = session.SlotTimeDimension
	case pipeline.GeoDimensionName:
		slot = session.SlotGeoDimension
	default:
		Fail(w, r, http.StatusBadRequest, "unknown dimension: "+name)
		return
	}

	v, ok := s.Get(slot)
	if !ok {
		Fail(w, r, http.StatusBadRequest, "pipeline stage not yet run: "+slot)
		return
	}
	OK(w, r, v)
}

// FactPreview is a paginated slice of the fact table.
type FactPreview struct {
	MeasureColumns []string          `json:"measure_columns"`
	TotalRows      int               `json:"total_rows"`
	Offset         int               `json:"offset"`
	Rows           []models.FactRow  `json:"rows"`
	Stats          *models.FactStats `json:"stats,omitempty"`
}

// GetFact
// @Summary Read fact table
// @Description Returns a paginated preview of the fact table from the last pipeline run
// @Tags pipeline
// @Produce json
// @Param id path string true "session id"
// @Param limit query int false "page size (default 50)"
// @Param offset query int false "page offset"
// @Success 200 {object} APIResponse{data=FactPreview}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/fact [get]
func (c *PipelineController) GetFact(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	fact, ok := requireFact(w, r, s)
	if !ok {
		return
	}

	limit := cast.ToInt(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	offset := cast.ToInt(r.URL.Query().Get("offset"))
	if offset < 0 || offset > len(fact.Rows) {
		offset = 0
	}
	end := offset + limit
	if end > len(fact.Rows) {
		end = len(fact.Rows)
	}

	preview := FactPreview{
		MeasureColumns: fact.MeasureColumns,
		TotalRows:      len(fact.Rows),
		Offset:         offset,
		Rows:           fact.Rows[offset:end],
	}
	if v, ok := s.Get(session.SlotFactStats); ok {
		stats := v.(models.FactStats)
		preview.Stats = &stats
	}
	OK(w, r, preview)
}

// ExportFact
// @Summary Export fact table
// @Description Streams the fact table and both dimensions as an xlsx attachment
// @Tags pipeline
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "session id"
// @Success 200 {file} binary
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/fact/export [get]
func (c *PipelineController) ExportFact(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	fact, ok := requireFact(w, r, s)
	if !ok {
		return
	}
	timeDim, okTime := s.Get(session.SlotTimeDimension)
	geoDim, okGeo := s.Get(session.SlotGeoDimension)
	if !okTime || !okGeo {
		Fail(w, r, http.StatusBadRequest, "pipeline stage not yet run: dimensions")
		return
	}

	f, err := loader.WriteFactTable(fact,
		timeDim.(*models.DimensionTable), geoDim.(*models.DimensionTable))
	if err != nil {
		Fail(w, r, http.StatusInternalServerError, "export failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="tabla_hechos.xlsx"`)
	if err := f.Write(w); err != nil {
		// Headers already sent; nothing left to do but log via middleware.
		return
	}
}

// requireRawBatch reads the raw batch and its dataset config from the
// session, rendering a 400 when the load step has not run.
func requireRawBatch(w http.ResponseWriter, r *http.Request, s *session.Session) (*models.RawBatch, *meta.DatasetConfig, bool) {
	v, ok := s.Get(session.SlotRawBatch)
	if !ok {
		Fail(w, r, http.StatusBadRequest, "pipeline stage not yet run: "+session.SlotRawBatch)
		return nil, nil, false
	}
	nameVal, _ := s.Get(session.SlotDataset)
	cfg := meta.GetDataset(cast.ToString(nameVal))
	if cfg == nil {
		Fail(w, r, http.StatusBadRequest, "session has no dataset associated with its raw batch")
		return nil, nil, false
	}
	return v.(*models.RawBatch), cfg, true
}

func requireFact(w http.ResponseWriter, r *http.Request, s *session.Session) (*models.FactTable, bool) {
	v, ok := s.Get(session.SlotFactTable)
	if !ok {
		Fail(w, r, http.StatusBadRequest, "pipeline stage not yet run: "+session.SlotFactTable)
		return nil, false
	}
	return v.(*models.FactTable), true
}

// failPipelineError maps pipeline errors onto HTTP statuses, naming the
// offending columns for schema violations.
func failPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *models.SchemaError
	if errors.As(err, &schemaErr) {
		Fail(w, r, http.StatusBadRequest, schemaErr.Error())
		return
	}
	Fail(w, r, http.StatusInternalServerError, err.Error())
}
