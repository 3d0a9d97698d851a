package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"opendata-service/service/meta"
	"opendata-service/service/models"
	"opendata-service/testutil"
)

func TestCleanEducationBatch(t *testing.T) {
	result, err := Clean(testutil.EducationRawBatch(), &meta.EducationDataset)
	assert.NoError(t, err)

	// 8 source rows: one NACIONAL roll-up, one exact duplicate, one
	// unparseable population value.
	assert.Equal(t, 8, result.Stats.SourceRows)
	assert.Equal(t, 5, result.Stats.CleanRows)
	assert.Equal(t, 1, result.Stats.DroppedFiltered)
	assert.Equal(t, 1, result.Stats.DroppedMissing)
	assert.Equal(t, 1, result.Stats.DroppedDuplicates)
	assert.Len(t, result.Batch.Records, 5)
	assert.Equal(t, meta.EducationDataset.RequiredColumns, result.Batch.Columns)

	var medellin2020 models.CleanRecord
	for _, record := range result.Batch.Records {
		if record["municipio"] == "medellin" && record["a_o"] == float64(2020) {
			medellin2020 = record
		}
	}
	assert.NotNil(t, medellin2020)
	assert.Equal(t, "antioquia", medellin2020["departamento"])
	assert.Equal(t, "05", medellin2020["c_digo_departamento"])
	assert.Equal(t, float64(1234567), medellin2020["poblaci_n_5_16"])
	assert.Equal(t, 87.23, medellin2020["tasa_matriculaci_n_5_16"])
}

func TestCleanNormalizesCaseVariants(t *testing.T) {
	// "ANTIOQUIA" and "Antioquia" must land on the same key.
	result, err := Clean(testutil.EducationRawBatch(), &meta.EducationDataset)
	assert.NoError(t, err)

	departments := make(map[string]int)
	for _, record := range result.Batch.Records {
		departments[record["departamento"].(string)]++
	}
	assert.Equal(t, map[string]int{"antioquia": 3, "atlantico": 2}, departments)
}

func TestCleanMissingRequiredColumn(t *testing.T) {
	batch := testutil.WithoutColumn(testutil.EducationRawBatch(), "poblaci_n_5_16")

	result, err := Clean(batch, &meta.EducationDataset)
	assert.Nil(t, result)

	var schemaErr *models.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, meta.DatasetEducation, schemaErr.Dataset)
	assert.Equal(t, []string{"poblaci_n_5_16"}, schemaErr.Missing)
}

func TestCleanMatchesUnnormalizedHeaders(t *testing.T) {
	// Source headers may arrive upper-cased; matching happens on the
	// normalized name.
	batch := testutil.EducationRawBatch()
	upper := &models.RawBatch{Records: batch.Records}
	for _, col := range batch.Columns {
		upper.Columns = append(upper.Columns, col)
	}
	upper.Columns[0] = "A_O"

	renamed := make([]models.RawRecord, 0, len(batch.Records))
	for _, record := range batch.Records {
		clone := models.RawRecord{}
		for k, v := range record {
			if k == "a_o" {
				clone["A_O"] = v
			} else {
				clone[k] = v
			}
		}
		renamed = append(renamed, clone)
	}
	upper.Records = renamed

	result, err := Clean(upper, &meta.EducationDataset)
	assert.NoError(t, err)
	assert.Equal(t, 5, result.Stats.CleanRows)
}

func TestCleanIdempotent(t *testing.T) {
	first, err := Clean(testutil.EducationRawBatch(), &meta.EducationDataset)
	assert.NoError(t, err)

	second, err := Clean(rawFromClean(&first.Batch), &meta.EducationDataset)
	assert.NoError(t, err)

	assert.Equal(t, first.Stats.CleanRows, second.Stats.CleanRows)
	assert.Zero(t, second.Stats.DroppedFiltered)
	assert.Zero(t, second.Stats.DroppedMissing)
	assert.Zero(t, second.Stats.DroppedDuplicates)
	assert.Equal(t, first.Batch.Records, second.Batch.Records)
}

func TestCleanProcurementBatch(t *testing.T) {
	result, err := Clean(testutil.ProcurementRawBatch(), &meta.ProcurementDataset)
	assert.NoError(t, err)

	assert.Equal(t, 6, result.Stats.CleanRows)
	assert.Zero(t, result.Stats.DroppedMissing)

	record := result.Batch.Records[0]
	assert.Equal(t, "antioquia", record["departamento_entidad"])
	assert.Equal(t, "prestacion de servicios", record["tipo_de_contrato"])
	assert.Equal(t, float64(15000000), record["valor_contrato"])
	start, ok := record["fecha_inicio_ejecuci_n"].(time.Time)
	assert.True(t, ok)
	assert.Equal(t, 2020, start.Year())
}

func TestCleanProcurementDropsBadDates(t *testing.T) {
	batch := testutil.AppendRecord(testutil.ProcurementRawBatch(), models.RawRecord{
		"departamento_entidad":   "Antioquia",
		"tipo_de_contrato":       "Obra",
		"documento_proveedor":    "900111226",
		"valor_contrato":         "1000000",
		"fecha_inicio_ejecuci_n": "sin fecha",
		"fecha_fin_ejecuci_n":    "2021-01-01T00:00:00.000",
	})

	result, err := Clean(batch, &meta.ProcurementDataset)
	assert.NoError(t, err)
	assert.Equal(t, 6, result.Stats.CleanRows)
	assert.Equal(t, 1, result.Stats.DroppedMissing)
}

// rawFromClean re-wraps a clean batch as raw input, for idempotence checks.
func rawFromClean(clean *models.CleanBatch) *models.RawBatch {
	records := make([]models.RawRecord, 0, len(clean.Records))
	for _, record := range clean.Records {
		raw := models.RawRecord{}
		for k, v := range record {
			raw[k] = v
		}
		records = append(records, raw)
	}
	return &models.RawBatch{Columns: clean.Columns, Records: records}
}
