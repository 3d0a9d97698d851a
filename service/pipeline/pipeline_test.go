package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"opendata-service/service/meta"
	"opendata-service/service/models"
	"opendata-service/testutil"
)

func TestRunStarSchemaWithPopulation(t *testing.T) {
	result, err := RunStarSchema(&meta.EducationDataset,
		testutil.EducationRawBatch(), testutil.PopulationRawBatch())
	assert.NoError(t, err)

	assert.Equal(t, 5, result.Clean.Stats.CleanRows)
	assert.NotNil(t, result.Enrichment)
	assert.Equal(t, 5, result.Enrichment.MatchedRows)

	// Years 2020 and 2021; department codes 05 and 08.
	assert.Len(t, result.TimeDimension.Rows, 2)
	assert.Len(t, result.GeoDimension.Rows, 2)

	// The geo dimension keeps one municipality per code, so the two
	// Medellín rows fail the inner join.
	assert.Equal(t, 3, result.Fact.Stats.OutputRows)
	assert.Equal(t, 2, result.Fact.Stats.ExcludedGeo)
	assert.Zero(t, result.Fact.Stats.ExcludedTime)

	// The derived ratio joined the measure set.
	assert.Contains(t, result.Fact.Table.MeasureColumns, meta.EnrollmentRatioColumn)
	for _, row := range result.Fact.Table.Rows {
		assert.Contains(t, row.Measures, meta.EnrollmentRatioColumn)
	}
}

func TestRunStarSchemaWithoutPopulation(t *testing.T) {
	result, err := RunStarSchema(&meta.EducationDataset, testutil.EducationRawBatch(), nil)
	assert.NoError(t, err)

	assert.Nil(t, result.Enrichment)
	assert.NotContains(t, result.Fact.Table.MeasureColumns, meta.EnrollmentRatioColumn)
	assert.Equal(t, 3, result.Fact.Stats.OutputRows)
}

func TestRunStarSchemaSchemaError(t *testing.T) {
	batch := testutil.WithoutColumn(testutil.EducationRawBatch(), "a_o")

	result, err := RunStarSchema(&meta.EducationDataset, batch, nil)
	assert.Nil(t, result)

	var schemaErr *models.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, "a_o")
}

func TestRunClean(t *testing.T) {
	result, err := RunClean(&meta.ProcurementDataset, testutil.ProcurementRawBatch())
	assert.NoError(t, err)
	assert.Equal(t, 6, result.Stats.CleanRows)
}
