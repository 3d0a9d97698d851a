/*
 * @module service/pipeline/pipeline
 * @description Pipeline orchestration: runs clean -> optional enrichment -> dimensions -> fact for star-schema datasets, or clean alone, with stage logging and metrics
 * @architecture Pipeline orchestrator - explicit result object owned by the caller, no global mutable state
 * @documentReference service/meta/datasets.go
 * @stateFlow RawBatch -> RecordCleaner -> Enricher -> DimensionBuilder -> FactBuilder
 * @rules A SchemaError aborts the run before any dimension or fact construction; runs are synchronous and side-effect free beyond logs and counters
 * @dependencies log/slog, opendata-service/service/metrics, opendata-service/service/models
 * @refs api/controllers/pipeline_controller.go
 */

package pipeline

import (
	"log/slog"

	"opendata-service/service/meta"
	"opendata-service/service/metrics"
	"opendata-service/service/models"
)

// Dimension names used across the service.
const (
	TimeDimensionName = "tiempo"
	GeoDimensionName  = "geo"
)

// StarSchemaResult is the caller-owned context of one star-schema run: every
// stage output in one place.
type StarSchemaResult struct {
	Clean         *CleanResult           `json:"clean"`
	Enrichment    *EnrichmentResult      `json:"enrichment,omitempty"`
	TimeDimension *models.DimensionTable `json:"time_dimension"`
	GeoDimension  *models.DimensionTable `json:"geo_dimension"`
	Fact          *FactResult            `json:"fact"`
}

// RunStarSchema executes the full pipeline for a star-schema dataset. The
// population batch is optional; when present the clean batch is enriched and
// the derived ratio joins the measure set. When absent the run proceeds
// without it, which is not an error.
func RunStarSchema(cfg *meta.DatasetConfig, raw *models.RawBatch, population *models.RawBatch) (*StarSchemaResult, error) {
	cleanResult, err := Clean(raw, cfg)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(cfg.Name, "schema_error").Inc()
		return nil, err
	}
	recordDropMetrics(cfg.Name, &cleanResult.Stats)

	result := &StarSchemaResult{Clean: cleanResult}
	workingBatch := &cleanResult.Batch
	measureColumns := append([]string(nil), cfg.MeasureColumns...)

	if population != nil {
		popBatch, err := PreparePopulation(population)
		if err != nil {
			metrics.PipelineRuns.WithLabelValues(cfg.Name, "schema_error").Inc()
			return nil, err
		}
		result.Enrichment = EnrichWithPopulation(workingBatch, popBatch)
		workingBatch = &result.Enrichment.Batch
		measureColumns = append(measureColumns, meta.EnrollmentRatioColumn)
	}

	timeDim, err := BuildDimension(workingBatch, cfg.TimeKeyColumns, TimeDimensionName, nil)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(cfg.Name, "schema_error").Inc()
		return nil, err
	}
	result.TimeDimension = timeDim

	geoDim, err := BuildGeographyDimension(workingBatch,
		cfg.GeoKeyColumns[0], cfg.GeoKeyColumns[1], cfg.GeoKeyColumns[2], GeoDimensionName)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(cfg.Name, "schema_error").Inc()
		return nil, err
	}
	result.GeoDimension = geoDim

	factResult, err := BuildFact(workingBatch, timeDim, geoDim, measureColumns)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(cfg.Name, "schema_error").Inc()
		return nil, err
	}
	result.Fact = factResult
	metrics.FactRowsExcluded.WithLabelValues(cfg.Name, TimeDimensionName).Add(float64(factResult.Stats.ExcludedTime))
	metrics.FactRowsExcluded.WithLabelValues(cfg.Name, GeoDimensionName).Add(float64(factResult.Stats.ExcludedGeo))

	metrics.PipelineRuns.WithLabelValues(cfg.Name, "ok").Inc()
	slog.Info("pipeline: star schema run finished",
		"dataset", cfg.Name,
		"clean_rows", cleanResult.Stats.CleanRows,
		"time_dimension_rows", len(timeDim.Rows),
		"geo_dimension_rows", len(geoDim.Rows),
		"fact_rows", factResult.Stats.OutputRows,
		"enriched", population != nil)
	return result, nil
}

// RunClean executes the cleaning stage alone, for datasets modelled without a
// star schema.
func RunClean(cfg *meta.DatasetConfig, raw *models.RawBatch) (*CleanResult, error) {
	cleanResult, err := Clean(raw, cfg)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(cfg.Name, "schema_error").Inc()
		return nil, err
	}
	recordDropMetrics(cfg.Name, &cleanResult.Stats)
	metrics.PipelineRuns.WithLabelValues(cfg.Name, "ok").Inc()
	return cleanResult, nil
}

func recordDropMetrics(dataset string, stats *models.CleanStats) {
	metrics.RowsDropped.WithLabelValues(dataset, "filtered").Add(float64(stats.DroppedFiltered))
	metrics.RowsDropped.WithLabelValues(dataset, "missing_value").Add(float64(stats.DroppedMissing))
	metrics.RowsDropped.WithLabelValues(dataset, "duplicate").Add(float64(stats.DroppedDuplicates))
}
