/*
 * @module testutil/test_helper
 * @description Test helpers and data factories for the pipeline packages
 * @architecture Test infrastructure - shared batch factories and HTTP helpers
 * @documentReference service/models/records.go
 * @stateFlow factory builds raw batch -> test runs pipeline stage -> assertions on outputs
 * @rules Factories produce deterministic batches; tests mutate copies, never the factory output they share
 * @dependencies testify, net/http/httptest
 * @refs service/pipeline
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"opendata-service/service/models"
)

// RecordOption mutates one raw record before it enters the batch.
type RecordOption func(models.RawRecord)

// EducationRawBatch builds an education batch the way the Socrata API
// serves it: every value a string, one NACIONAL summary row, one exact
// duplicate and one row with an unparseable metric.
func EducationRawBatch() *models.RawBatch {
	columns := []string{
		"a_o", "c_digo_departamento", "departamento", "municipio",
		"poblaci_n_5_16", "tasa_matriculaci_n_5_16", "cobertura_neta", "cobertura_bruta",
	}
	rows := []models.RawRecord{
		educationRow("2020", "5", "Antioquia", "Medellín", "1.234.567", "87.23", "85.1", "90.2"),
		educationRow("2020", "5", "ANTIOQUIA", "Envigado", "45000", "91.5", "88.0", "93.3"),
		educationRow("2020", "8", "Atlántico", "Barranquilla", "250000", "84.2", "82.7", "88.9"),
		educationRow("2021", "5", "Antioquia", "Medellín", "1.240.000", "88.01", "86.0", "91.0"),
		educationRow("2021", "8", "Atlántico", "Barranquilla", "252000", "85.0", "83.1", "89.4"),
		// Country-level summary row, must be filtered out.
		educationRow("2020", "0", "NACIONAL", "NACIONAL", "9000000", "86.0", "84.0", "89.0"),
		// Exact duplicate of the first row.
		educationRow("2020", "5", "Antioquia", "Medellín", "1.234.567", "87.23", "85.1", "90.2"),
		// Unparseable metric, dropped with a counted warning.
		educationRow("2020", "11", "Bogotá, D.C.", "Bogotá, D.C.", "no disponible", "90.0", "89.0", "92.0"),
	}
	return &models.RawBatch{Columns: columns, Records: rows}
}

func educationRow(year, code, department, municipality, population, rate, net, gross string) models.RawRecord {
	return models.RawRecord{
		"a_o":                     year,
		"c_digo_departamento":     code,
		"departamento":            department,
		"municipio":               municipality,
		"poblaci_n_5_16":          population,
		"tasa_matriculaci_n_5_16": rate,
		"cobertura_neta":          net,
		"cobertura_bruta":         gross,
	}
}

// PopulationRawBatch builds a DANE projection batch matching the
// education factory's departments, with per-area rows that the
// preparation step must aggregate.
func PopulationRawBatch() *models.RawBatch {
	columns := []string{"dpnom", "dpmp", "ano", "area_geografica", "poblacion"}
	rows := []models.RawRecord{
		populationRow("Antioquia", "Medellín", "2020", "Total", "2500000"),
		populationRow("Antioquia", "Medellín", "2020", "Cabecera", "2400000"),
		populationRow("Antioquia", "Envigado", "2020", "Total", "240000"),
		populationRow("Atlántico", "Barranquilla", "2020", "Total", "1200000"),
		populationRow("Antioquia", "Medellín", "2021", "Total", "2520000"),
		populationRow("Atlántico", "Barranquilla", "2021", "Total", "1210000"),
	}
	return &models.RawBatch{Columns: columns, Records: rows}
}

func populationRow(department, municipality, year, area, population string) models.RawRecord {
	return models.RawRecord{
		"dpnom":           department,
		"dpmp":            municipality,
		"ano":             year,
		"area_geografica": area,
		"poblacion":       population,
	}
}

// ProcurementRawBatch builds a SECOP contracts batch with Socrata
// floating timestamps and one row outside the evolution window.
func ProcurementRawBatch() *models.RawBatch {
	columns := []string{
		"departamento_entidad", "tipo_de_contrato", "documento_proveedor",
		"valor_contrato", "fecha_inicio_ejecuci_n", "fecha_fin_ejecuci_n",
	}
	rows := []models.RawRecord{
		procurementRow("Antioquia", "Prestación de Servicios", "900111222", "15000000", "2020-03-15T00:00:00.000", "2020-09-15T00:00:00.000"),
		procurementRow("Antioquia", "Obra", "900111223", "250000000", "2020-06-01T00:00:00.000", "2021-06-01T00:00:00.000"),
		procurementRow("Antioquia", "Prestación de Servicios", "900111224", "9000000", "2021-01-20T00:00:00.000", "2021-07-20T00:00:00.000"),
		procurementRow("Atlántico", "Suministro", "800555111", "40000000", "2020-03-10T00:00:00.000", "2020-12-10T00:00:00.000"),
		procurementRow("Atlántico", "Obra", "800555112", "310000000", "2021-08-05T00:00:00.000", "2022-08-05T00:00:00.000"),
		// Before the default evolution window.
		procurementRow("Antioquia", "Obra", "900111225", "120000000", "2016-11-30T00:00:00.000", "2017-11-30T00:00:00.000"),
	}
	return &models.RawBatch{Columns: columns, Records: rows}
}

func procurementRow(department, contractType, supplierID, value, startDate, endDate string) models.RawRecord {
	return models.RawRecord{
		"departamento_entidad":   department,
		"tipo_de_contrato":       contractType,
		"documento_proveedor":    supplierID,
		"valor_contrato":         value,
		"fecha_inicio_ejecuci_n": startDate,
		"fecha_fin_ejecuci_n":    endDate,
	}
}

// AppendRecord clones a batch and appends extra rows, leaving the
// original untouched.
func AppendRecord(batch *models.RawBatch, rows ...models.RawRecord) *models.RawBatch {
	records := make([]models.RawRecord, 0, len(batch.Records)+len(rows))
	records = append(records, batch.Records...)
	records = append(records, rows...)
	return &models.RawBatch{Columns: batch.Columns, Records: records}
}

// WithoutColumn clones a batch dropping one column from the header and
// every record, for schema-violation tests.
func WithoutColumn(batch *models.RawBatch, column string) *models.RawBatch {
	columns := make([]string, 0, len(batch.Columns))
	for _, c := range batch.Columns {
		if c != column {
			columns = append(columns, c)
		}
	}
	records := make([]models.RawRecord, 0, len(batch.Records))
	for _, rec := range batch.Records {
		clone := models.RawRecord{}
		for k, v := range rec {
			if k != column {
				clone[k] = v
			}
		}
		records = append(records, clone)
	}
	return &models.RawBatch{Columns: columns, Records: records}
}

// HTTPTestHelper wraps request building and envelope assertions.
type HTTPTestHelper struct{}

// NewHTTPTestHelper creates an HTTP test helper.
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest builds a request with a JSON body.
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertEnvelope decodes the APIResponse envelope and checks its status.
func (h *HTTPTestHelper) AssertEnvelope(t *testing.T, w *httptest.ResponseRecorder, expectedHTTP, expectedStatus int) map[string]interface{} {
	assert.Equal(t, expectedHTTP, w.Code)

	var envelope map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	assert.NoError(t, err)
	assert.EqualValues(t, expectedStatus, envelope["status"])
	return envelope
}
