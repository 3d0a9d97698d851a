/*
 * @module service/pipeline/fact
 * @description Fact builder: inner-joins the cleaned batch against the time and geography dimensions and projects surrogate keys plus measures
 * @architecture Pipeline stage - pure function of (clean batch, dimensions, measures)
 * @documentReference service/meta/datasets.go
 * @stateFlow CleanBatch -> time-key join -> geo-key join -> project measures -> FactTable
 * @rules Inner-join semantics: rows without a dimension match are excluded, counted and sampled in the stats, never silently lost without accounting
 * @dependencies log/slog, opendata-service/service/models
 * @refs service/pipeline/aggregator.go, service/pipeline/pipeline.go
 */

package pipeline

import (
	"log/slog"

	"opendata-service/service/models"
)

// excludedKeySample caps how many unmatched natural keys are echoed back in
// the stats.
const excludedKeySample = 20

// FactResult carries the fact table plus the join accounting.
type FactResult struct {
	Table models.FactTable `json:"table"`
	Stats models.FactStats `json:"stats"`
}

// BuildFact inner-joins the clean batch to the time dimension on its natural
// key, then to the geography dimension on its natural key tuple, and projects
// the surrogate keys plus the measure columns. Measures absent from a row
// (optional derived measures) are simply left off that row's measure map.
func BuildFact(clean *models.CleanBatch, timeDim, geoDim *models.DimensionTable, measureColumns []string) (*FactResult, error) {
	needed := append(append([]string(nil), timeDim.Columns...), geoDim.Columns...)
	if err := verifyColumns(clean, needed, "fact"); err != nil {
		return nil, err
	}

	timeIndex := timeDim.LookupIndex()
	geoIndex := geoDim.LookupIndex()

	result := &FactResult{
		Table: models.FactTable{
			MeasureColumns: append([]string(nil), measureColumns...),
		},
		Stats: models.FactStats{InputRows: len(clean.Records)},
	}

	for _, record := range clean.Records {
		timeKey, ok := lookupKey(record, timeDim.Columns, timeIndex)
		if !ok {
			result.Stats.ExcludedTime++
			sampleExcluded(&result.Stats, record, timeDim.Columns)
			continue
		}
		geoKey, ok := lookupKey(record, geoDim.Columns, geoIndex)
		if !ok {
			result.Stats.ExcludedGeo++
			sampleExcluded(&result.Stats, record, geoDim.Columns)
			continue
		}

		measures := make(map[string]float64, len(measureColumns))
		for _, col := range measureColumns {
			if v, isNumber := record[col].(float64); isNumber {
				measures[col] = v
			}
		}
		result.Table.Rows = append(result.Table.Rows, models.FactRow{
			TimeKey:  timeKey,
			GeoKey:   geoKey,
			Measures: measures,
		})
	}
	result.Stats.OutputRows = len(result.Table.Rows)

	slog.Info("fact: table built",
		"input_rows", result.Stats.InputRows,
		"output_rows", result.Stats.OutputRows,
		"excluded_time", result.Stats.ExcludedTime,
		"excluded_geo", result.Stats.ExcludedGeo)
	return result, nil
}

func lookupKey(record models.CleanRecord, columns []string, index map[string]int) (int, bool) {
	values := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		values = append(values, record[col])
	}
	key, ok := index[models.Fingerprint(values...)]
	return key, ok
}

func sampleExcluded(stats *models.FactStats, record models.CleanRecord, columns []string) {
	if len(stats.ExcludedKeys) >= excludedKeySample {
		return
	}
	values := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		values = append(values, record[col])
	}
	stats.ExcludedKeys = append(stats.ExcludedKeys, models.Fingerprint(values...))
}
