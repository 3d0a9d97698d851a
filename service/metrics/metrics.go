/*
 * @module service/metrics
 * @description Prometheus counters for pipeline observability: runs, dropped rows, excluded fact joins and fetch outcomes
 * @architecture Metrics registry - promauto counters on the default registry
 * @documentReference main.go (/metrics endpoint)
 * @stateFlow Counters incremented by pipeline stages and clients, scraped via promhttp
 * @rules Per-value coercion failures never abort a run; they surface here and in stage stats
 * @dependencies github.com/prometheus/client_golang/prometheus, github.com/prometheus/client_golang/prometheus/promauto
 * @refs service/pipeline, api/controllers
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts pipeline executions by dataset and outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opendata_pipeline_runs_total",
		Help: "Pipeline executions by dataset and status",
	}, []string{"dataset", "status"})

	// RowsDropped counts rows removed during cleaning, by reason.
	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opendata_rows_dropped_total",
		Help: "Rows dropped during cleaning by dataset and reason",
	}, []string{"dataset", "reason"})

	// FactRowsExcluded counts rows excluded by the fact inner join.
	FactRowsExcluded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opendata_fact_rows_excluded_total",
		Help: "Rows excluded from the fact table for lacking a dimension match",
	}, []string{"dataset", "dimension"})

	// FetchRequests counts remote dataset fetches by outcome.
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opendata_fetch_requests_total",
		Help: "Remote dataset fetches by resource and outcome",
	}, []string{"resource", "outcome"})
)
