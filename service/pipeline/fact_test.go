package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"opendata-service/service/models"
)

func TestBuildFact(t *testing.T) {
	batch := educationCleanBatch()
	timeDim, err := BuildDimension(batch, []string{"a_o"}, "tiempo", nil)
	assert.NoError(t, err)
	geoDim, err := BuildGeographyDimension(batch,
		"c_digo_departamento", "departamento", "municipio", "geo")
	assert.NoError(t, err)

	result, err := BuildFact(batch, timeDim, geoDim, []string{"tasa_matriculaci_n_5_16"})
	assert.NoError(t, err)

	// The geography dimension keeps one representative municipality per
	// code, so the two Medellín rows fail the geo join.
	assert.Equal(t, 4, result.Stats.InputRows)
	assert.Equal(t, 2, result.Stats.OutputRows)
	assert.Zero(t, result.Stats.ExcludedTime)
	assert.Equal(t, 2, result.Stats.ExcludedGeo)
	assert.Len(t, result.Stats.ExcludedKeys, 2)

	// Every surviving row's surrogate keys resolve in their dimensions.
	timeKeys := make(map[int]bool)
	for _, row := range timeDim.Rows {
		timeKeys[row.Key] = true
	}
	geoKeys := make(map[int]bool)
	for _, row := range geoDim.Rows {
		geoKeys[row.Key] = true
	}
	for _, row := range result.Table.Rows {
		assert.True(t, timeKeys[row.TimeKey])
		assert.True(t, geoKeys[row.GeoKey])
	}

	envigado := result.Table.Rows[0]
	assert.Equal(t, 1, envigado.TimeKey)
	assert.Equal(t, 1, envigado.GeoKey)
	assert.Equal(t, 91.5, envigado.Measures["tasa_matriculaci_n_5_16"])
}

func TestBuildFactExcludesUnmatchedTime(t *testing.T) {
	batch := educationCleanBatch()

	// Time dimension built from 2020 rows only; the 2021 row must be
	// excluded and counted, not silently dropped.
	partial := &models.CleanBatch{Columns: batch.Columns, Records: batch.Records[1:]}
	timeDim, err := BuildDimension(partial, []string{"a_o"}, "tiempo", nil)
	assert.NoError(t, err)
	geoDim, err := BuildGeographyDimension(batch,
		"c_digo_departamento", "departamento", "municipio", "geo")
	assert.NoError(t, err)

	result, err := BuildFact(batch, timeDim, geoDim, []string{"tasa_matriculaci_n_5_16"})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Stats.ExcludedTime)
	assert.Contains(t, result.Stats.ExcludedKeys, models.Fingerprint(float64(2021)))
}

func TestBuildFactOptionalMeasure(t *testing.T) {
	batch := educationCleanBatch()
	// Only one record carries the derived ratio.
	batch.Records[2]["pct_matriculados_vs_pob_total"] = 49.4

	timeDim, err := BuildDimension(batch, []string{"a_o"}, "tiempo", nil)
	assert.NoError(t, err)
	geoDim, err := BuildGeographyDimension(batch,
		"c_digo_departamento", "departamento", "municipio", "geo")
	assert.NoError(t, err)

	result, err := BuildFact(batch, timeDim, geoDim,
		[]string{"tasa_matriculaci_n_5_16", "pct_matriculados_vs_pob_total"})
	assert.NoError(t, err)

	withRatio := 0
	for _, row := range result.Table.Rows {
		assert.Contains(t, row.Measures, "tasa_matriculaci_n_5_16")
		if _, ok := row.Measures["pct_matriculados_vs_pob_total"]; ok {
			withRatio++
		}
	}
	assert.Equal(t, 1, withRatio)
}

func TestBuildFactMissingJoinColumn(t *testing.T) {
	batch := educationCleanBatch()
	timeDim, err := BuildDimension(batch, []string{"a_o"}, "tiempo", nil)
	assert.NoError(t, err)
	geoDim, err := BuildGeographyDimension(batch,
		"c_digo_departamento", "departamento", "municipio", "geo")
	assert.NoError(t, err)

	stripped := &models.CleanBatch{
		Columns: []string{"a_o", "tasa_matriculaci_n_5_16"},
		Records: batch.Records,
	}
	result, err := BuildFact(stripped, timeDim, geoDim, nil)
	assert.Nil(t, result)
	assert.Error(t, err)
}
