package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"opendata-service/service/models"
)

func educationCleanBatch() *models.CleanBatch {
	return &models.CleanBatch{
		Columns: []string{
			"a_o", "c_digo_departamento", "departamento", "municipio", "tasa_matriculaci_n_5_16",
		},
		Records: []models.CleanRecord{
			{"a_o": float64(2021), "c_digo_departamento": "05", "departamento": "antioquia", "municipio": "medellin", "tasa_matriculaci_n_5_16": 88.01},
			{"a_o": float64(2020), "c_digo_departamento": "05", "departamento": "antioquia", "municipio": "medellin", "tasa_matriculaci_n_5_16": 87.23},
			{"a_o": float64(2020), "c_digo_departamento": "05", "departamento": "antioquia", "municipio": "envigado", "tasa_matriculaci_n_5_16": 91.5},
			{"a_o": float64(2020), "c_digo_departamento": "08", "departamento": "atlantico", "municipio": "barranquilla", "tasa_matriculaci_n_5_16": 84.2},
		},
	}
}

func TestBuildDimension(t *testing.T) {
	dim, err := BuildDimension(educationCleanBatch(), []string{"a_o"}, "tiempo", nil)
	assert.NoError(t, err)

	assert.Equal(t, "tiempo", dim.Name)
	assert.Equal(t, "id_tiempo", dim.KeyColumn)
	assert.Equal(t, []string{"a_o"}, dim.Columns)

	// Surrogate keys are 1..n in ascending natural-key order.
	assert.Len(t, dim.Rows, 2)
	assert.Equal(t, 1, dim.Rows[0].Key)
	assert.Equal(t, float64(2020), dim.Rows[0].Attributes["a_o"])
	assert.Equal(t, 2, dim.Rows[1].Key)
	assert.Equal(t, float64(2021), dim.Rows[1].Attributes["a_o"])
}

func TestBuildDimensionKeysContiguous(t *testing.T) {
	batch := &models.CleanBatch{
		Columns: []string{"c_digo_departamento"},
		Records: []models.CleanRecord{
			{"c_digo_departamento": "08"},
			{"c_digo_departamento": "05"},
			{"c_digo_departamento": "05"},
			{"c_digo_departamento": "11"},
		},
	}

	dim, err := BuildDimension(batch, []string{"c_digo_departamento"}, "depto", nil)
	assert.NoError(t, err)

	assert.Len(t, dim.Rows, 3)
	for i, row := range dim.Rows {
		assert.Equal(t, i+1, row.Key)
	}
	assert.Equal(t, "05", dim.Rows[0].Attributes["c_digo_departamento"])
	assert.Equal(t, "11", dim.Rows[2].Attributes["c_digo_departamento"])
}

func TestBuildDimensionMissingColumn(t *testing.T) {
	dim, err := BuildDimension(educationCleanBatch(), []string{"mes"}, "tiempo", nil)
	assert.Nil(t, dim)

	var schemaErr *models.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"mes"}, schemaErr.Missing)
}

func TestBuildGeographyDimension(t *testing.T) {
	dim, err := BuildGeographyDimension(educationCleanBatch(),
		"c_digo_departamento", "departamento", "municipio", "geo")
	assert.NoError(t, err)

	// One representative municipality per department code, picked by
	// (code, municipality) sort order.
	assert.Len(t, dim.Rows, 2)
	assert.Equal(t, 1, dim.Rows[0].Key)
	assert.Equal(t, "05", dim.Rows[0].Attributes["c_digo_departamento"])
	assert.Equal(t, "envigado", dim.Rows[0].Attributes["municipio"])
	assert.Equal(t, 2, dim.Rows[1].Key)
	assert.Equal(t, "08", dim.Rows[1].Attributes["c_digo_departamento"])
	assert.Equal(t, "barranquilla", dim.Rows[1].Attributes["municipio"])
}

func TestLookupIndexRoundTrip(t *testing.T) {
	dim, err := BuildDimension(educationCleanBatch(), []string{"a_o"}, "tiempo", nil)
	assert.NoError(t, err)

	index := dim.LookupIndex()
	assert.Len(t, index, 2)
	assert.Equal(t, 1, index[models.Fingerprint(float64(2020))])
	assert.Equal(t, 2, index[models.Fingerprint(float64(2021))])
}
