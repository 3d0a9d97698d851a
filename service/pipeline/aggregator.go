/*
 * @module service/pipeline/aggregator
 * @description Read-only reductions over the star schema: fact-to-dimension joins, rankings, grouped means/sums/counts, per-capita rates, Pearson correlation and monthly evolution series
 * @architecture Pipeline stage - pure functions over fact/dimension/clean state
 * @documentReference service/meta/datasets.go
 * @stateFlow FactTable + dimensions -> joined view -> group-by reductions -> AggregateView
 * @rules Views are recomputed from current state, never mutated in place; ties in rankings break by input row order (stable sort); division by a missing or zero population yields an explicit null rate
 * @dependencies math, sort, time, opendata-service/service/models
 * @refs api/controllers/analytics_controller.go
 */

package pipeline

import (
	"math"
	"sort"
	"time"

	"opendata-service/service/models"
)

// JoinFact joins the fact table back to its dimensions, producing one flat
// analytical view with surrogate keys, dimension attributes and measures.
func JoinFact(fact *models.FactTable, timeDim, geoDim *models.DimensionTable) *models.AggregateView {
	timeAttrs := attributesByKey(timeDim)
	geoAttrs := attributesByKey(geoDim)

	columns := []string{timeDim.KeyColumn, geoDim.KeyColumn}
	columns = append(columns, timeDim.Columns...)
	columns = append(columns, geoDim.Columns...)
	columns = append(columns, fact.MeasureColumns...)

	view := &models.AggregateView{Columns: columns}
	for _, row := range fact.Rows {
		out := make(map[string]interface{}, len(columns))
		out[timeDim.KeyColumn] = row.TimeKey
		out[geoDim.KeyColumn] = row.GeoKey
		for k, v := range timeAttrs[row.TimeKey] {
			out[k] = v
		}
		for k, v := range geoAttrs[row.GeoKey] {
			out[k] = v
		}
		for _, col := range fact.MeasureColumns {
			if v, ok := row.Measures[col]; ok {
				out[col] = v
			}
		}
		view.Rows = append(view.Rows, out)
	}
	return view
}

// BatchView exposes a clean batch as an aggregate view so the group-by
// reductions apply to non-star datasets as well.
func BatchView(batch *models.CleanBatch) *models.AggregateView {
	view := &models.AggregateView{Columns: append([]string(nil), batch.Columns...)}
	for _, record := range batch.Records {
		row := make(map[string]interface{}, len(record))
		for k, v := range record {
			row[k] = v
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}

// RenameColumn returns a copy of the view with one column renamed, for
// aligning join keys between views from different sources.
func RenameColumn(view *models.AggregateView, from, to string) *models.AggregateView {
	out := &models.AggregateView{Columns: make([]string, len(view.Columns))}
	for i, col := range view.Columns {
		if col == from {
			col = to
		}
		out.Columns[i] = col
	}
	for _, row := range view.Rows {
		copied := make(map[string]interface{}, len(row))
		for k, v := range row {
			if k == from {
				k = to
			}
			copied[k] = v
		}
		out.Rows = append(out.Rows, copied)
	}
	return out
}

// RankByMetric groups the view, takes the mean of the metric per group, sorts
// and returns the top (or bottom, when ascending) N groups. Ties keep the
// groups' first-appearance order.
func RankByMetric(view *models.AggregateView, metric string, groupColumns []string, topN int, ascending bool) (*models.AggregateView, error) {
	if err := verifyViewColumns(view, append(append([]string(nil), groupColumns...), metric)); err != nil {
		return nil, err
	}

	groups := groupRows(view, groupColumns)
	ranked := make([]map[string]interface{}, 0, len(groups))
	for _, g := range groups {
		mean, ok := meanOf(g.rows, metric)
		if !ok {
			continue
		}
		row := make(map[string]interface{}, len(groupColumns)+1)
		for i, col := range groupColumns {
			row[col] = g.values[i]
		}
		row[metric] = mean
		ranked = append(ranked, row)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a := ranked[i][metric].(float64)
		b := ranked[j][metric].(float64)
		if ascending {
			return a < b
		}
		return a > b
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	return &models.AggregateView{
		Columns: append(append([]string(nil), groupColumns...), metric),
		Rows:    ranked,
	}, nil
}

// MeanByGroup computes per-group means of the value columns. Groups come out
// in first-appearance order.
func MeanByGroup(view *models.AggregateView, valueColumns, groupColumns []string) (*models.AggregateView, error) {
	return reduceByGroup(view, valueColumns, groupColumns, func(rows []map[string]interface{}, col string) (float64, bool) {
		return meanOf(rows, col)
	})
}

// SumByGroup computes per-group sums of the value columns.
func SumByGroup(view *models.AggregateView, valueColumns, groupColumns []string) (*models.AggregateView, error) {
	return reduceByGroup(view, valueColumns, groupColumns, func(rows []map[string]interface{}, col string) (float64, bool) {
		sum, n := 0.0, 0
		for _, row := range rows {
			if v, ok := row[col].(float64); ok {
				sum += v
				n++
			}
		}
		return sum, n > 0
	})
}

// CountByGroup counts rows per group into countColumn.
func CountByGroup(view *models.AggregateView, groupColumns []string, countColumn string) (*models.AggregateView, error) {
	if err := verifyViewColumns(view, groupColumns); err != nil {
		return nil, err
	}
	groups := groupRows(view, groupColumns)
	out := &models.AggregateView{Columns: append(append([]string(nil), groupColumns...), countColumn)}
	for _, g := range groups {
		row := make(map[string]interface{}, len(groupColumns)+1)
		for i, col := range groupColumns {
			row[col] = g.values[i]
		}
		row[countColumn] = float64(len(g.rows))
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// RatePerCapita left-joins a per-group count view to a per-group population
// view and derives count/population*scale. Groups without a population match,
// or with a zero population, get an explicit nil rate instead of a division.
func RatePerCapita(counts, population *models.AggregateView, joinColumns []string, countColumn, populationColumn, rateColumn string, scale float64) (*models.AggregateView, error) {
	if err := verifyViewColumns(counts, append(append([]string(nil), joinColumns...), countColumn)); err != nil {
		return nil, err
	}
	if err := verifyViewColumns(population, append(append([]string(nil), joinColumns...), populationColumn)); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1000
	}

	popIndex := make(map[string]float64, len(population.Rows))
	for _, row := range population.Rows {
		if v, ok := row[populationColumn].(float64); ok {
			popIndex[rowFingerprint(row, joinColumns)] = v
		}
	}

	out := &models.AggregateView{
		Columns: append(append([]string(nil), joinColumns...), countColumn, populationColumn, rateColumn),
	}
	for _, row := range counts.Rows {
		joined := make(map[string]interface{}, len(joinColumns)+3)
		for _, col := range joinColumns {
			joined[col] = row[col]
		}
		count, _ := row[countColumn].(float64)
		joined[countColumn] = count

		pop, ok := popIndex[rowFingerprint(row, joinColumns)]
		if !ok || pop <= 0 {
			joined[populationColumn] = nil
			joined[rateColumn] = nil
		} else {
			joined[populationColumn] = pop
			joined[rateColumn] = count / pop * scale
		}
		out.Rows = append(out.Rows, joined)
	}
	return out, nil
}

// PairedSeries extracts the rows of a view where both columns hold numbers,
// as two parallel series.
func PairedSeries(view *models.AggregateView, columnA, columnB string) (a, b []float64) {
	for _, row := range view.Rows {
		va, okA := row[columnA].(float64)
		vb, okB := row[columnB].(float64)
		if okA && okB {
			a = append(a, va)
			b = append(b, vb)
		}
	}
	return a, b
}

// PearsonCorrelation computes the Pearson coefficient over two paired series.
// Fewer than two pairs, mismatched lengths or a zero-variance series yield
// ErrInsufficientData rather than a numeric result.
func PearsonCorrelation(a, b []float64) (float64, error) {
	if len(a) != len(b) || len(a) < 2 {
		return 0, models.ErrInsufficientData
	}
	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, models.ErrInsufficientData
	}
	return cov / math.Sqrt(varA*varB), nil
}

// MonthlyEvolution sums a measure by (year-month, category) over a clean
// batch, dropping rows before minYear. The output is ordered by month then
// category, with the month rendered as "2006-01".
func MonthlyEvolution(batch *models.CleanBatch, dateColumn, categoryColumn, valueColumn string, minYear int) (*models.AggregateView, error) {
	if err := verifyColumns(batch, []string{dateColumn, categoryColumn, valueColumn}, "monthly_evolution"); err != nil {
		return nil, err
	}

	type bucket struct {
		month    string
		category string
		total    float64
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, record := range batch.Records {
		date, ok := record[dateColumn].(time.Time)
		if !ok {
			continue
		}
		if minYear > 0 && date.Year() < minYear {
			continue
		}
		value, ok := record[valueColumn].(float64)
		if !ok {
			continue
		}
		month := date.Format("2006-01")
		category := models.CanonicalString(record[categoryColumn])
		fp := models.Fingerprint(month, category)
		bkt, exists := buckets[fp]
		if !exists {
			bkt = &bucket{month: month, category: category}
			buckets[fp] = bkt
			order = append(order, fp)
		}
		bkt.total += value
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := buckets[order[i]], buckets[order[j]]
		if a.month != b.month {
			return a.month < b.month
		}
		return a.category < b.category
	})

	out := &models.AggregateView{Columns: []string{"anio_mes", categoryColumn, valueColumn}}
	for _, fp := range order {
		bkt := buckets[fp]
		out.Rows = append(out.Rows, map[string]interface{}{
			"anio_mes":     bkt.month,
			categoryColumn: bkt.category,
			valueColumn:    bkt.total,
		})
	}
	return out, nil
}

// MetricByDepartment averages a metric per department for one year, keyed by
// the zero-padded department code, as consumed by the choropleth layer.
func MetricByDepartment(view *models.AggregateView, codeColumn, departmentColumn, metric, yearColumn string, year int) (*models.AggregateView, error) {
	if err := verifyViewColumns(view, []string{codeColumn, departmentColumn, metric, yearColumn}); err != nil {
		return nil, err
	}

	filtered := &models.AggregateView{Columns: view.Columns}
	for _, row := range view.Rows {
		if y, ok := row[yearColumn].(float64); ok && int(y) == year {
			filtered.Rows = append(filtered.Rows, row)
		}
	}

	grouped, err := MeanByGroup(filtered, []string{metric}, []string{codeColumn, departmentColumn})
	if err != nil {
		return nil, err
	}

	out := &models.AggregateView{Columns: []string{"codigo_departamento", departmentColumn, metric}}
	for _, row := range grouped.Rows {
		out.Rows = append(out.Rows, map[string]interface{}{
			"codigo_departamento": ZeroPadCode(row[codeColumn], 2),
			departmentColumn:      row[departmentColumn],
			metric:                row[metric],
		})
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i]["codigo_departamento"].(string) < out.Rows[j]["codigo_departamento"].(string)
	})
	return out, nil
}

// MaxNumeric returns the largest numeric value in a view column.
func MaxNumeric(view *models.AggregateView, column string) (float64, bool) {
	max, found := 0.0, false
	for _, row := range view.Rows {
		if v, ok := row[column].(float64); ok {
			if !found || v > max {
				max, found = v, true
			}
		}
	}
	return max, found
}

// FilterRows returns the rows where keep reports true.
func FilterRows(view *models.AggregateView, keep func(map[string]interface{}) bool) *models.AggregateView {
	out := &models.AggregateView{Columns: append([]string(nil), view.Columns...)}
	for _, row := range view.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

type rowGroup struct {
	values []interface{}
	rows   []map[string]interface{}
}

func groupRows(view *models.AggregateView, groupColumns []string) []*rowGroup {
	order := make([]string, 0)
	groups := make(map[string]*rowGroup)
	for _, row := range view.Rows {
		fp := rowFingerprint(row, groupColumns)
		g, exists := groups[fp]
		if !exists {
			values := make([]interface{}, 0, len(groupColumns))
			for _, col := range groupColumns {
				values = append(values, row[col])
			}
			g = &rowGroup{values: values}
			groups[fp] = g
			order = append(order, fp)
		}
		g.rows = append(g.rows, row)
	}
	out := make([]*rowGroup, 0, len(order))
	for _, fp := range order {
		out = append(out, groups[fp])
	}
	return out
}

func reduceByGroup(view *models.AggregateView, valueColumns, groupColumns []string, reduce func([]map[string]interface{}, string) (float64, bool)) (*models.AggregateView, error) {
	if err := verifyViewColumns(view, append(append([]string(nil), groupColumns...), valueColumns...)); err != nil {
		return nil, err
	}
	groups := groupRows(view, groupColumns)
	out := &models.AggregateView{Columns: append(append([]string(nil), groupColumns...), valueColumns...)}
	for _, g := range groups {
		row := make(map[string]interface{}, len(groupColumns)+len(valueColumns))
		for i, col := range groupColumns {
			row[col] = g.values[i]
		}
		for _, col := range valueColumns {
			if v, ok := reduce(g.rows, col); ok {
				row[col] = v
			} else {
				row[col] = nil
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func meanOf(rows []map[string]interface{}, column string) (float64, bool) {
	sum, n := 0.0, 0
	for _, row := range rows {
		if v, ok := row[column].(float64); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func rowFingerprint(row map[string]interface{}, columns []string) string {
	values := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		values = append(values, row[col])
	}
	return models.Fingerprint(values...)
}

func verifyViewColumns(view *models.AggregateView, columns []string) error {
	present := stringSet(view.Columns)
	var missing []string
	for _, col := range columns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &models.SchemaError{Dataset: "aggregate_view", Missing: missing}
	}
	return nil
}

func attributesByKey(dim *models.DimensionTable) map[int]map[string]interface{} {
	out := make(map[int]map[string]interface{}, len(dim.Rows))
	for _, row := range dim.Rows {
		out[row.Key] = row.Attributes
	}
	return out
}
