/*
 * @module service/models/records
 * @description Tabular data model for the transformation pipeline: raw batches, clean batches, dimension tables, fact tables and aggregate views
 * @architecture Layered architecture - shared data model
 * @documentReference api/controllers, service/pipeline
 * @stateFlow RawBatch -> CleanBatch -> DimensionTable/FactTable -> AggregateView
 * @rules Each stage owns a distinct row type; conversions between stages are explicit, never implicit
 * @dependencies strconv, strings, time
 * @refs service/pipeline, service/loader, client
 */

package models

import (
	"strconv"
	"strings"
	"time"
)

// RawRecord is one row as delivered by a data source: column name to an
// untyped scalar (string, number or nil). No schema is guaranteed.
type RawRecord map[string]interface{}

// RawBatch is an ordered batch of raw records. Columns preserves the
// presentation order of the source, since record maps do not.
type RawBatch struct {
	Columns []string    `json:"columns"`
	Records []RawRecord `json:"records"`
}

// CleanRecord is a row after normalization and type coercion. Cell values are
// restricted to float64, time.Time or string. Required numeric/date cells are
// never missing; a cleaner drops such rows instead.
type CleanRecord map[string]interface{}

// CleanBatch is a cleaned batch with lower-cased, machine-safe column names.
type CleanBatch struct {
	Columns []string      `json:"columns"`
	Records []CleanRecord `json:"records"`
}

// CleanStats reports what the cleaner dropped, for observability.
type CleanStats struct {
	SourceRows        int `json:"source_rows"`
	CleanRows         int `json:"clean_rows"`
	DroppedFiltered   int `json:"dropped_filtered"`
	DroppedMissing    int `json:"dropped_missing"`
	DroppedDuplicates int `json:"dropped_duplicates"`
}

// DimensionRow is one row of a dimension table: a synthetic surrogate key
// plus the natural key attributes it was derived from.
type DimensionRow struct {
	Key        int                    `json:"key"`
	Attributes map[string]interface{} `json:"attributes"`
}

// DimensionTable is a small lookup table with 1-based contiguous surrogate
// keys, stable for the lifetime of one pipeline run.
type DimensionTable struct {
	Name      string         `json:"name"`
	KeyColumn string         `json:"key_column"`
	Columns   []string       `json:"columns"`
	Rows      []DimensionRow `json:"rows"`
}

// LookupIndex builds a natural-key fingerprint to surrogate-key index over
// the given attribute columns.
func (t *DimensionTable) LookupIndex(columns ...string) map[string]int {
	if len(columns) == 0 {
		columns = t.Columns
	}
	index := make(map[string]int, len(t.Rows))
	for _, row := range t.Rows {
		values := make([]interface{}, 0, len(columns))
		for _, col := range columns {
			values = append(values, row.Attributes[col])
		}
		fp := Fingerprint(values...)
		if _, exists := index[fp]; !exists {
			index[fp] = row.Key
		}
	}
	return index
}

// FactRow references exactly one time and one geography surrogate key plus
// numeric measures. Optional measures may be absent from the map.
type FactRow struct {
	TimeKey  int                `json:"id_tiempo"`
	GeoKey   int                `json:"id_geo"`
	Measures map[string]float64 `json:"measures"`
}

// FactTable is the star-schema fact table. Every row's surrogate keys resolve
// in their dimensions; the builder enforces inner-join semantics.
type FactTable struct {
	MeasureColumns []string  `json:"measure_columns"`
	Rows           []FactRow `json:"rows"`
}

// FactStats reports the join outcome, including rows excluded for lacking a
// dimension match. Exclusion is policy, not a defect, but it is never silent.
type FactStats struct {
	InputRows    int      `json:"input_rows"`
	OutputRows   int      `json:"output_rows"`
	ExcludedTime int      `json:"excluded_time"`
	ExcludedGeo  int      `json:"excluded_geo"`
	ExcludedKeys []string `json:"excluded_keys,omitempty"`
}

// AggregateView is a derived, read-only table produced by a group-by or join.
// It is always recomputed from current fact/dimension state, never mutated.
type AggregateView struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

// fingerprintSep separates tuple elements; it cannot occur in normalized text.
const fingerprintSep = "\x1f"

// Fingerprint renders a natural-key tuple as a canonical string usable as a
// map key. Integer-valued floats render without fractional drift so numeric
// codes join cleanly against their string renderings.
func Fingerprint(values ...interface{}) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, CanonicalString(v))
	}
	return strings.Join(parts, fingerprintSep)
}

// CanonicalString formats a single scalar for fingerprinting.
func CanonicalString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
