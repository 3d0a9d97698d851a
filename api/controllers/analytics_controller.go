/*
 * @module api/controllers/analytics_controller
 * @description Analytics controller: rankings, grouped summaries, choropleth input, per-capita contract rates, correlation and monthly evolution over the session's pipeline outputs
 * @architecture MVC architecture - controller layer
 * @documentReference service/pipeline/aggregator.go
 * @stateFlow derived slots -> join/group-by reductions -> aggregate views
 * @rules Views are recomputed per request from current session state; insufficient data yields an explanatory 422, never a bare empty result
 * @dependencies net/http, github.com/spf13/cast, opendata-service/service/pipeline
 * @refs api/routes.go
 */

package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"opendata-service/service/meta"
	"opendata-service/service/models"
	"opendata-service/service/pipeline"
	"opendata-service/service/session"
)

// AnalyticsController serves aggregate views over pipeline outputs.
type AnalyticsController struct{}

// NewAnalyticsController creates an analytics controller instance.
func NewAnalyticsController() *AnalyticsController {
	return &AnalyticsController{}
}

// Ranking
// @Summary Rank groups by metric
// @Description Groups the joined fact view, averages the metric and returns the top (or bottom) N groups; ties keep input order
// @Tags analytics
// @Produce json
// @Param id path string true "session id"
// @Param metric query string true "measure column"
// @Param by query string false "comma-separated group columns (default municipio)"
// @Param top query int false "group count (default 10)"
// @Param ascending query bool false "rank bottom-up"
// @Success 200 {object} APIResponse{data=models.AggregateView}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/analytics/ranking [get]
func (c *AnalyticsController) Ranking(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	view, ok := requireJoinedView(w, r, s)
	if !ok {
		return
	}

	query := r.URL.Query()
	metric := query.Get("metric")
	if metric == "" {
		Fail(w, r, http.StatusBadRequest, "query parameter 'metric' is required")
		return
	}
	groupColumns := splitColumns(query.Get("by"), []string{"municipio"})
	topN := cast.ToInt(query.Get("top"))
	if topN <= 0 {
		topN = 10
	}

	ranked, err := pipeline.RankByMetric(view, metric, groupColumns, topN, cast.ToBool(query.Get("ascending")))
	if err != nil {
		failPipelineError(w, r, err)
		return
	}
	OK(w, r, ranked)
}

// Summary
// @Summary Grouped means
// @Description Returns per-group means of the requested measures over the joined fact view
// @Tags analytics
// @Produce json
// @Param id path string true "session id"
// @Param metrics query string true "comma-separated measure columns"
// @Param by query string false "comma-separated group columns (default departamento,a_o)"
// @Success 200 {object} APIResponse{data=models.AggregateView}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/analytics/summary [get]
func (c *AnalyticsController) Summary(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	view, ok := requireJoinedView(w, r, s)
	if !ok {
		return
	}

	query := r.URL.Query()
	metrics := splitColumns(query.Get("metrics"), nil)
	if len(metrics) == 0 {
		Fail(w, r, http.StatusBadRequest, "query parameter 'metrics' is required")
		return
	}
	groupColumns := splitColumns(query.Get("by"), []string{"departamento", "a_o"})

	summary, err := pipeline.MeanByGroup(view, metrics, groupColumns)
	if err != nil {
		failPipelineError(w, r, err)
		return
	}
	OK(w, r, summary)
}

// DepartmentMap
// @Summary Metric by department
// @Description Averages a metric per department for one year, keyed by the zero-padded department code, as choropleth input
// @Tags analytics
// @Produce json
// @Param id path string true "session id"
// @Param metric query string true "measure column"
// @Param year query int false "year (default: latest in the view)"
// @Success 200 {object} APIResponse{data=models.AggregateView}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/analytics/department-map [get]
func (c *AnalyticsController) DepartmentMap(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	view, ok := requireJoinedView(w, r, s)
	if !ok {
		return
	}

	query := r.URL.Query()
	metric := query.Get("metric")
	if metric == "" {
		Fail(w, r, http.StatusBadRequest, "query parameter 'metric' is required")
		return
	}
	year := cast.ToInt(query.Get("year"))
	if year == 0 {
		latest, ok := pipeline.MaxNumeric(view, "a_o")
		if !ok {
			Fail(w, r, http.StatusUnprocessableEntity, "no year values available in the fact view")
			return
		}
		year = int(latest)
	}

	mapped, err := pipeline.MetricByDepartment(view, "c_digo_departamento", "departamento", metric, "a_o", year)
	if err != nil {
		failPipelineError(w, r, err)
		return
	}
	OK(w, r, mapped)
}

// ContractRate
// @Summary Contracts per 1000 inhabitants
// @Description Counts contracts per department over the clean batch, left-joins the latest-year population and derives the per-capita rate; departments without population get an explicit null rate
// @Tags analytics
// @Produce json
// @Param id path string true "session id"
// @Param scale query number false "rate scale (default 1000)"
// @Success 200 {object} APIResponse{data=models.AggregateView}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/analytics/contract-rate [get]
func (c *AnalyticsController) ContractRate(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	counts, population, ok := contractCountsAndPopulation(w, r, s)
	if !ok {
		return
	}

	rates, err := pipeline.RatePerCapita(counts, population,
		[]string{"departamento_entidad"}, "num_contratos", meta.PopulationColPopulation,
		"contratos_por_1000_hab", cast.ToFloat64(r.URL.Query().Get("scale")))
	if err != nil {
		failPipelineError(w, r, err)
		return
	}
	OK(w, r, rates)
}

// CorrelationResponse is the correlation payload.
type CorrelationResponse struct {
	Coefficient float64 `json:"coefficient"`
	Pairs       int     `json:"pairs"`
}

// Correlation
// @Summary Population vs contract volume
// @Description Pearson correlation between department population and contract count; fewer than two paired observations yield 422
// @Tags analytics
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} APIResponse{data=CorrelationResponse}
// @Failure 422 {object} APIResponse
// @Router /sessions/{id}/analytics/correlation [get]
func (c *AnalyticsController) Correlation(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	counts, population, ok := contractCountsAndPopulation(w, r, s)
	if !ok {
		return
	}

	joined, err := pipeline.RatePerCapita(counts, population,
		[]string{"departamento_entidad"}, "num_contratos", meta.PopulationColPopulation,
		"contratos_por_1000_hab", 0)
	if err != nil {
		failPipelineError(w, r, err)
		return
	}

	// Inner pairs only: departments without a population match drop out.
	popSeries, countSeries := pipeline.PairedSeries(joined, meta.PopulationColPopulation, "num_contratos")
	coefficient, err := pipeline.PearsonCorrelation(popSeries, countSeries)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			Fail(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		Fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	OK(w, r, CorrelationResponse{Coefficient: coefficient, Pairs: len(popSeries)})
}

// MonthlyEvolution
// @Summary Monthly contracted value by type
// @Description Sums a measure by execution month and category over the clean batch, dropping rows before min_year
// @Tags analytics
// @Produce json
// @Param id path string true "session id"
// @Param measure query string false "value column (default valor_contrato)"
// @Param category query string false "category column (default tipo_de_contrato)"
// @Param min_year query int false "minimum year (default 2018)"
// @Success 200 {object} APIResponse{data=models.AggregateView}
// @Failure 400 {object} APIResponse
// @Router /sessions/{id}/analytics/monthly-evolution [get]
func (c *AnalyticsController) MonthlyEvolution(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	clean, ok := requireCleanBatch(w, r, s)
	if !ok {
		return
	}

	query := r.URL.Query()
	measure := query.Get("measure")
	if measure == "" {
		measure = "valor_contrato"
	}
	category := query.Get("category")
	if category == "" {
		category = "tipo_de_contrato"
	}
	minYear := cast.ToInt(query.Get("min_year"))
	if minYear == 0 {
		minYear = 2018
	}

	evolution, err := pipeline.MonthlyEvolution(clean, "fecha_inicio_ejecuci_n", category, measure, minYear)
	if err != nil {
		failPipelineError(w, r, err)
		return
	}
	OK(w, r, evolution)
}

// contractCountsAndPopulation builds the two views behind the procurement
// analytics: per-department contract counts from the clean batch, and the
// latest-year department population from the uploaded reference batch.
func contractCountsAndPopulation(w http.ResponseWriter, r *http.Request, s *session.Session) (counts, population *models.AggregateView, ok bool) {
	clean, ok := requireCleanBatch(w, r, s)
	if !ok {
		return nil, nil, false
	}

	popRaw, hasPop := s.Get(session.SlotPopulationBatch)
	if !hasPop {
		Fail(w, r, http.StatusBadRequest, "pipeline stage not yet run: "+session.SlotPopulationBatch)
		return nil, nil, false
	}
	popBatch, err := pipeline.PreparePopulation(popRaw.(*models.RawBatch))
	if err != nil {
		failPipelineError(w, r, err)
		return nil, nil, false
	}

	counts, err = pipeline.CountByGroup(pipeline.BatchView(clean),
		[]string{"departamento_entidad"}, "num_contratos")
	if err != nil {
		failPipelineError(w, r, err)
		return nil, nil, false
	}

	popView := pipeline.BatchView(popBatch)
	latestYear, found := pipeline.MaxNumeric(popView, meta.PopulationColYear)
	if !found {
		Fail(w, r, http.StatusUnprocessableEntity, "population batch has no usable year values")
		return nil, nil, false
	}
	latest := pipeline.FilterRows(popView, func(row map[string]interface{}) bool {
		year, isNumber := row[meta.PopulationColYear].(float64)
		return isNumber && year == latestYear
	})
	population, err = pipeline.SumByGroup(latest,
		[]string{meta.PopulationColPopulation}, []string{meta.PopulationColDepartment})
	if err != nil {
		failPipelineError(w, r, err)
		return nil, nil, false
	}
	population = pipeline.RenameColumn(population, meta.PopulationColDepartment, "departamento_entidad")
	return counts, population, true
}

// requireJoinedView joins the session's fact table back to its dimensions.
func requireJoinedView(w http.ResponseWriter, r *http.Request, s *session.Session) (*models.AggregateView, bool) {
	fact, ok := requireFact(w, r, s)
	if !ok {
		return nil, false
	}
	timeDim, okTime := s.Get(session.SlotTimeDimension)
	geoDim, okGeo := s.Get(session.SlotGeoDimension)
	if !okTime || !okGeo {
		Fail(w, r, http.StatusBadRequest, "pipeline stage not yet run: dimensions")
		return nil, false
	}
	return pipeline.JoinFact(fact,
		timeDim.(*models.DimensionTable), geoDim.(*models.DimensionTable)), true
}

func requireCleanBatch(w http.ResponseWriter, r *http.Request, s *session.Session) (*models.CleanBatch, bool) {
	v, ok := s.Get(session.SlotCleanBatch)
	if !ok {
		Fail(w, r, http.StatusBadRequest, "pipeline stage not yet run: "+session.SlotCleanBatch)
		return nil, false
	}
	return v.(*models.CleanBatch), true
}

func splitColumns(raw string, fallback []string) []string {
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			columns = append(columns, trimmed)
		}
	}
	if len(columns) == 0 {
		return fallback
	}
	return columns
}
