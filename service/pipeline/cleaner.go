/*
 * @module service/pipeline/cleaner
 * @description Record cleaner: schema validation, column restriction, per-class coercion, row filters, missing-value drops and exact-duplicate removal
 * @architecture Pipeline stage - pure function of (raw batch, dataset config)
 * @documentReference service/meta/datasets.go
 * @stateFlow RawBatch -> schema check -> coercion -> row filters -> missing drop -> dedup -> CleanBatch
 * @rules Missing required columns are fatal (SchemaError); per-value coercion failures drop the row and are only reported as counts
 * @dependencies log/slog, github.com/spf13/cast, opendata-service/service/models
 * @refs service/pipeline/pipeline.go
 */

package pipeline

import (
	"log/slog"

	"github.com/spf13/cast"

	"opendata-service/service/meta"
	"opendata-service/service/models"
)

// CleanResult carries the cleaned batch plus drop counts for observability.
type CleanResult struct {
	Batch models.CleanBatch `json:"batch"`
	Stats models.CleanStats `json:"stats"`
}

// Clean applies the full cleaning stage for one dataset:
//  1. verify every required column is present (fatal SchemaError otherwise),
//  2. restrict to the required columns under normalized names,
//  3. coerce numeric/date columns, normalize key and text columns,
//  4. apply configured row filters,
//  5. drop rows missing any required numeric/date value,
//  6. drop exact duplicates over all retained columns.
//
// The output batch has zero missing values in required numeric/date columns.
// Cleaning an already-clean batch yields the same rows.
func Clean(raw *models.RawBatch, cfg *meta.DatasetConfig) (*CleanResult, error) {
	sourceColumns := availableColumns(raw)

	// Source headers may carry accents or mixed case; match them by
	// normalized name.
	byNormalized := make(map[string]string, len(sourceColumns))
	for _, col := range sourceColumns {
		normalized := NormalizeColumnName(col)
		if _, exists := byNormalized[normalized]; !exists {
			byNormalized[normalized] = col
		}
	}

	var missing []string
	for _, col := range cfg.RequiredColumns {
		if _, ok := byNormalized[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Dataset: cfg.Name, Missing: missing}
	}

	numeric := stringSet(cfg.NumericColumns)
	dates := stringSet(cfg.DateColumns)
	keys := stringSet(cfg.KeyColumns)

	stats := models.CleanStats{SourceRows: len(raw.Records)}
	seen := make(map[string]struct{}, len(raw.Records))
	records := make([]models.CleanRecord, 0, len(raw.Records))

rows:
	for _, rawRecord := range raw.Records {
		record := make(models.CleanRecord, len(cfg.RequiredColumns))
		for _, col := range cfg.RequiredColumns {
			value := rawRecord[byNormalized[col]]
			switch {
			case numeric[col]:
				n, ok := ToNumber(value)
				if !ok {
					stats.DroppedMissing++
					continue rows
				}
				record[col] = n
			case dates[col]:
				d, ok := ToDate(value)
				if !ok {
					stats.DroppedMissing++
					continue rows
				}
				record[col] = d
			case cfg.CodeColumns[col] > 0:
				record[col] = ZeroPadCode(value, cfg.CodeColumns[col])
			case keys[col]:
				record[col] = ResolveAlias(NormalizeKey(cast.ToString(value), ""), meta.DepartmentAliases)
			default:
				record[col] = NormalizeText(cast.ToString(value))
			}
		}

		for _, filter := range cfg.RowFilters {
			value := cast.ToString(record[filter.Column])
			for _, excluded := range filter.Exclude {
				if value == excluded {
					stats.DroppedFiltered++
					continue rows
				}
			}
		}

		fp := recordFingerprint(record, cfg.RequiredColumns)
		if _, dup := seen[fp]; dup {
			stats.DroppedDuplicates++
			continue
		}
		seen[fp] = struct{}{}
		records = append(records, record)
	}

	stats.CleanRows = len(records)
	slog.Debug("cleaner: batch cleaned",
		"dataset", cfg.Name,
		"source_rows", stats.SourceRows,
		"clean_rows", stats.CleanRows,
		"dropped_filtered", stats.DroppedFiltered,
		"dropped_missing", stats.DroppedMissing,
		"dropped_duplicates", stats.DroppedDuplicates)

	return &CleanResult{
		Batch: models.CleanBatch{
			Columns: append([]string(nil), cfg.RequiredColumns...),
			Records: records,
		},
		Stats: stats,
	}, nil
}

// availableColumns returns the declared column list, falling back to the keys
// observed on the records when the batch carries none.
func availableColumns(raw *models.RawBatch) []string {
	if len(raw.Columns) > 0 {
		return raw.Columns
	}
	var columns []string
	seen := make(map[string]struct{})
	for _, record := range raw.Records {
		for col := range record {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				columns = append(columns, col)
			}
		}
	}
	return columns
}

func recordFingerprint(record models.CleanRecord, columns []string) string {
	values := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		values = append(values, record[col])
	}
	return models.Fingerprint(values...)
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
