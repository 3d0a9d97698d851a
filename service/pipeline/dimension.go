/*
 * @module service/pipeline/dimension
 * @description Dimension builder: derives lookup tables with contiguous 1-based surrogate keys from cleaned batches
 * @architecture Pipeline stage - pure function of (clean batch, key columns)
 * @documentReference service/meta/datasets.go
 * @stateFlow CleanBatch -> project key columns -> sort -> dedup first-wins -> assign surrogate keys
 * @rules Surrogate keys are contiguous 1..n in ascending natural-key order and unique within a dimension; a missing key column is a fatal SchemaError
 * @dependencies sort, opendata-service/service/models
 * @refs service/pipeline/fact.go, service/pipeline/pipeline.go
 */

package pipeline

import (
	"sort"

	"opendata-service/service/models"
)

// BuildDimension projects the natural key columns of a batch, deduplicates
// the tuples (first occurrence wins after sorting) and assigns surrogate keys
// 1..n. The surrogate key column is named id_<name>. With a nil sortBy the
// rows sort ascending by the natural key itself.
func BuildDimension(batch *models.CleanBatch, keyColumns []string, name string, sortBy []string) (*models.DimensionTable, error) {
	if err := verifyColumns(batch, keyColumns, "dimension_"+name); err != nil {
		return nil, err
	}
	if sortBy == nil {
		sortBy = keyColumns
	}

	projected := projectRows(batch, keyColumns)
	sortRows(projected, sortBy)

	table := &models.DimensionTable{
		Name:      name,
		KeyColumn: "id_" + name,
		Columns:   append([]string(nil), keyColumns...),
	}
	seen := make(map[string]struct{}, len(projected))
	for _, attrs := range projected {
		fp := attributesFingerprint(attrs, keyColumns)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		table.Rows = append(table.Rows, models.DimensionRow{
			Key:        len(table.Rows) + 1,
			Attributes: attrs,
		})
	}
	return table, nil
}

// BuildGeographyDimension derives the geography dimension with one
// representative municipality per department code: rows sort by (code,
// municipality) and only the first row per code is retained. This is a
// deliberate 1:1 department-to-key simplification; callers needing
// municipality-level granularity must not use this dimension for it.
func BuildGeographyDimension(batch *models.CleanBatch, codeColumn, departmentColumn, municipalityColumn, name string) (*models.DimensionTable, error) {
	keyColumns := []string{codeColumn, departmentColumn, municipalityColumn}
	if err := verifyColumns(batch, keyColumns, "dimension_"+name); err != nil {
		return nil, err
	}

	projected := projectRows(batch, keyColumns)
	sortRows(projected, []string{codeColumn, municipalityColumn})

	table := &models.DimensionTable{
		Name:      name,
		KeyColumn: "id_" + name,
		Columns:   keyColumns,
	}
	seen := make(map[string]struct{})
	for _, attrs := range projected {
		code := models.CanonicalString(attrs[codeColumn])
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		table.Rows = append(table.Rows, models.DimensionRow{
			Key:        len(table.Rows) + 1,
			Attributes: attrs,
		})
	}
	return table, nil
}

func verifyColumns(batch *models.CleanBatch, columns []string, dataset string) error {
	present := stringSet(batch.Columns)
	var missing []string
	for _, col := range columns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &models.SchemaError{Dataset: dataset, Missing: missing}
	}
	return nil
}

func projectRows(batch *models.CleanBatch, columns []string) []map[string]interface{} {
	projected := make([]map[string]interface{}, 0, len(batch.Records))
	for _, record := range batch.Records {
		attrs := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			attrs[col] = record[col]
		}
		projected = append(projected, attrs)
	}
	return projected
}

// sortRows orders rows ascending by the given columns. Numbers compare
// numerically, everything else by its canonical string. The sort is stable so
// input order breaks ties deterministically.
func sortRows(rows []map[string]interface{}, columns []string) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, col := range columns {
			c := compareValues(rows[i][col], rows[j][col])
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func compareValues(a, b interface{}) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := models.CanonicalString(a)
	bs := models.CanonicalString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func attributesFingerprint(attrs map[string]interface{}, columns []string) string {
	values := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		values = append(values, attrs[col])
	}
	return models.Fingerprint(values...)
}
