/*
 * @module service/pipeline/enrichment
 * @description Population enrichment: prepares the DANE projection reference batch and left-joins it onto cleaned education rows, deriving the enrolled-over-population ratio
 * @architecture Pipeline stage - pure function of (clean batch, reference batch)
 * @documentReference service/meta/datasets.go
 * @stateFlow reference RawBatch -> filter/coerce/group-sum -> join on (department, municipality, year) -> ratio measure
 * @rules The enrichment stage is optional; rows without a population match are dropped from the enriched batch and reported as a count
 * @dependencies log/slog, opendata-service/service/models
 * @refs service/pipeline/pipeline.go
 */

package pipeline

import (
	"log/slog"

	"opendata-service/service/meta"
	"opendata-service/service/models"
)

// EnrichmentResult is the enriched education batch plus join accounting.
type EnrichmentResult struct {
	Batch         models.CleanBatch `json:"batch"`
	MatchedRows   int               `json:"matched_rows"`
	DroppedNoPop  int               `json:"dropped_no_population"`
	ReferenceRows int               `json:"reference_rows"`
}

// PreparePopulation turns a raw DANE projection batch into a clean reference
// batch with one row per (department, municipality, year) and the population
// summed over the remaining grouping columns. When the area column is present
// only "total" rows are kept, so urban/rural splits are not double counted.
func PreparePopulation(raw *models.RawBatch) (*models.CleanBatch, error) {
	byNormalized := make(map[string]string)
	for _, col := range availableColumns(raw) {
		normalized := NormalizeColumnName(col)
		if _, exists := byNormalized[normalized]; !exists {
			byNormalized[normalized] = col
		}
	}

	required := []string{
		meta.PopulationColDepartment,
		meta.PopulationColMunicipality,
		meta.PopulationColYear,
		meta.PopulationColPopulation,
	}
	var missing []string
	for _, col := range required {
		if _, ok := byNormalized[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Dataset: "population", Missing: missing}
	}

	areaColumn, hasArea := byNormalized[meta.PopulationColArea]

	type group struct {
		department   string
		municipality string
		year         float64
		population   float64
	}
	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, record := range raw.Records {
		if hasArea {
			if NormalizeText(models.CanonicalString(record[areaColumn])) != "total" {
				continue
			}
		}
		year, ok := ToYear(record[byNormalized[meta.PopulationColYear]])
		if !ok {
			continue
		}
		// DANE renders populations as dot-grouped integers ("32.733").
		population, ok := ToNumberGrouped(record[byNormalized[meta.PopulationColPopulation]])
		if !ok {
			continue
		}
		department := ResolveAlias(
			NormalizeKey(models.CanonicalString(record[byNormalized[meta.PopulationColDepartment]]), ""),
			meta.DepartmentAliases)
		// The municipality key gets the same alias treatment as the
		// education side, or spellings like "Bogotá, D.C." never join.
		municipality := ResolveAlias(
			NormalizeKey(models.CanonicalString(record[byNormalized[meta.PopulationColMunicipality]]), ""),
			meta.DepartmentAliases)

		fp := models.Fingerprint(department, municipality, float64(year))
		g, exists := groups[fp]
		if !exists {
			g = &group{department: department, municipality: municipality, year: float64(year)}
			groups[fp] = g
			order = append(order, fp)
		}
		g.population += population
	}

	records := make([]models.CleanRecord, 0, len(order))
	for _, fp := range order {
		g := groups[fp]
		records = append(records, models.CleanRecord{
			meta.PopulationColDepartment:   g.department,
			meta.PopulationColMunicipality: g.municipality,
			meta.PopulationColYear:         g.year,
			meta.PopulationColPopulation:   g.population,
		})
	}

	return &models.CleanBatch{
		Columns: []string{
			meta.PopulationColDepartment,
			meta.PopulationColMunicipality,
			meta.PopulationColYear,
			meta.PopulationColPopulation,
		},
		Records: records,
	}, nil
}

// EnrichWithPopulation joins cleaned education rows against the prepared
// population batch on (department, municipality, year). Matched rows gain the
// population value and the derived enrollment ratio measure; unmatched rows
// are dropped and counted.
func EnrichWithPopulation(clean *models.CleanBatch, population *models.CleanBatch) *EnrichmentResult {
	index := make(map[string]float64, len(population.Records))
	for _, record := range population.Records {
		fp := models.Fingerprint(
			record[meta.PopulationColDepartment],
			record[meta.PopulationColMunicipality],
			record[meta.PopulationColYear])
		index[fp] += asFloat(record[meta.PopulationColPopulation])
	}

	result := &EnrichmentResult{ReferenceRows: len(population.Records)}
	records := make([]models.CleanRecord, 0, len(clean.Records))
	for _, record := range clean.Records {
		fp := models.Fingerprint(record["departamento"], record["municipio"], record["a_o"])
		pop, ok := index[fp]
		if !ok || pop <= 0 {
			result.DroppedNoPop++
			continue
		}
		enriched := make(models.CleanRecord, len(record)+2)
		for k, v := range record {
			enriched[k] = v
		}
		enriched[meta.PopulationColPopulation] = pop
		enriched[meta.EnrollmentRatioColumn] = asFloat(record["poblaci_n_5_16"]) / pop * 100
		records = append(records, enriched)
	}
	result.MatchedRows = len(records)

	columns := append(append([]string(nil), clean.Columns...),
		meta.PopulationColPopulation, meta.EnrollmentRatioColumn)
	result.Batch = models.CleanBatch{Columns: columns, Records: records}

	slog.Debug("enrichment: population join finished",
		"matched_rows", result.MatchedRows,
		"dropped_no_population", result.DroppedNoPop,
		"reference_rows", result.ReferenceRows)
	return result
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
