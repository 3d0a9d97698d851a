package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"opendata-service/service/meta"
	"opendata-service/service/models"
	"opendata-service/testutil"
)

func joinedEducationView(t *testing.T) *models.AggregateView {
	batch := educationCleanBatch()
	timeDim, err := BuildDimension(batch, []string{"a_o"}, "tiempo", nil)
	assert.NoError(t, err)
	geoDim, err := BuildGeographyDimension(batch,
		"c_digo_departamento", "departamento", "municipio", "geo")
	assert.NoError(t, err)
	fact, err := BuildFact(batch, timeDim, geoDim, []string{"tasa_matriculaci_n_5_16"})
	assert.NoError(t, err)
	return JoinFact(&fact.Table, timeDim, geoDim)
}

func TestJoinFact(t *testing.T) {
	view := joinedEducationView(t)

	assert.Len(t, view.Rows, 2)
	assert.Contains(t, view.Columns, "id_tiempo")
	assert.Contains(t, view.Columns, "id_geo")
	assert.Contains(t, view.Columns, "municipio")
	assert.Contains(t, view.Columns, "tasa_matriculaci_n_5_16")

	first := view.Rows[0]
	assert.Equal(t, 1, first["id_tiempo"])
	assert.Equal(t, float64(2020), first["a_o"])
	assert.Equal(t, "envigado", first["municipio"])
	assert.Equal(t, 91.5, first["tasa_matriculaci_n_5_16"])
}

func rankingView() *models.AggregateView {
	return &models.AggregateView{
		Columns: []string{"municipio", "tasa"},
		Rows: []map[string]interface{}{
			{"municipio": "medellin", "tasa": 80.0},
			{"municipio": "envigado", "tasa": 90.0},
			{"municipio": "medellin", "tasa": 100.0},
			{"municipio": "barranquilla", "tasa": 90.0},
			{"municipio": "quibdo", "tasa": 70.0},
		},
	}
}

func TestRankByMetric(t *testing.T) {
	ranked, err := RankByMetric(rankingView(), "tasa", []string{"municipio"}, 3, false)
	assert.NoError(t, err)

	// Group means: medellin 90, envigado 90, barranquilla 90, quibdo 70.
	// Ties keep first-appearance order.
	assert.Len(t, ranked.Rows, 3)
	assert.Equal(t, "medellin", ranked.Rows[0]["municipio"])
	assert.Equal(t, float64(90), ranked.Rows[0]["tasa"])
	assert.Equal(t, "envigado", ranked.Rows[1]["municipio"])
	assert.Equal(t, "barranquilla", ranked.Rows[2]["municipio"])
}

func TestRankByMetricAscending(t *testing.T) {
	ranked, err := RankByMetric(rankingView(), "tasa", []string{"municipio"}, 1, true)
	assert.NoError(t, err)
	assert.Len(t, ranked.Rows, 1)
	assert.Equal(t, "quibdo", ranked.Rows[0]["municipio"])
}

func TestRankByMetricUnknownColumn(t *testing.T) {
	ranked, err := RankByMetric(rankingView(), "cobertura", []string{"municipio"}, 3, false)
	assert.Nil(t, ranked)

	var schemaErr *models.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"cobertura"}, schemaErr.Missing)
}

func TestMeanAndSumByGroup(t *testing.T) {
	view := rankingView()

	means, err := MeanByGroup(view, []string{"tasa"}, []string{"municipio"})
	assert.NoError(t, err)
	assert.Len(t, means.Rows, 4)
	assert.Equal(t, "medellin", means.Rows[0]["municipio"])
	assert.Equal(t, float64(90), means.Rows[0]["tasa"])

	sums, err := SumByGroup(view, []string{"tasa"}, []string{"municipio"})
	assert.NoError(t, err)
	assert.Equal(t, float64(180), sums.Rows[0]["tasa"])
}

func TestCountByGroup(t *testing.T) {
	counts, err := CountByGroup(rankingView(), []string{"municipio"}, "n")
	assert.NoError(t, err)

	assert.Equal(t, []string{"municipio", "n"}, counts.Columns)
	assert.Equal(t, float64(2), counts.Rows[0]["n"])
	assert.Equal(t, float64(1), counts.Rows[1]["n"])
}

func TestRatePerCapita(t *testing.T) {
	counts := &models.AggregateView{
		Columns: []string{"departamento_entidad", "num_contratos"},
		Rows: []map[string]interface{}{
			{"departamento_entidad": "antioquia", "num_contratos": float64(50)},
			{"departamento_entidad": "atlantico", "num_contratos": float64(20)},
			{"departamento_entidad": "vaupes", "num_contratos": float64(3)},
			{"departamento_entidad": "guainia", "num_contratos": float64(2)},
		},
	}
	population := &models.AggregateView{
		Columns: []string{"departamento_entidad", "poblacion"},
		Rows: []map[string]interface{}{
			{"departamento_entidad": "antioquia", "poblacion": float64(2500000)},
			{"departamento_entidad": "atlantico", "poblacion": float64(1200000)},
			{"departamento_entidad": "guainia", "poblacion": float64(0)},
		},
	}

	rates, err := RatePerCapita(counts, population,
		[]string{"departamento_entidad"}, "num_contratos", "poblacion", "tasa_contratos", 1000)
	assert.NoError(t, err)
	assert.Len(t, rates.Rows, 4)

	assert.InDelta(t, 50.0/2500000*1000, rates.Rows[0]["tasa_contratos"], 1e-9)
	assert.InDelta(t, 20.0/1200000*1000, rates.Rows[1]["tasa_contratos"], 1e-9)

	// No population match, and a zero population: explicit nil rate.
	assert.Nil(t, rates.Rows[2]["tasa_contratos"])
	assert.Nil(t, rates.Rows[2]["poblacion"])
	assert.Nil(t, rates.Rows[3]["tasa_contratos"])
}

func TestPairedSeriesSkipsNils(t *testing.T) {
	view := &models.AggregateView{
		Columns: []string{"poblacion", "n"},
		Rows: []map[string]interface{}{
			{"poblacion": float64(100), "n": float64(1)},
			{"poblacion": nil, "n": float64(2)},
			{"poblacion": float64(300), "n": float64(3)},
		},
	}

	a, b := PairedSeries(view, "poblacion", "n")
	assert.Equal(t, []float64{100, 300}, a)
	assert.Equal(t, []float64{1, 3}, b)
}

func TestPearsonCorrelation(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected float64
		wantErr  bool
	}{
		{"perfect positive", []float64{1, 2, 3}, []float64{2, 4, 6}, 1.0, false},
		{"perfect negative", []float64{1, 2, 3}, []float64{6, 4, 2}, -1.0, false},
		{"single pair", []float64{1}, []float64{2}, 0, true},
		{"mismatched lengths", []float64{1, 2}, []float64{1, 2, 3}, 0, true},
		{"zero variance", []float64{5, 5, 5}, []float64{1, 2, 3}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := PearsonCorrelation(tt.a, tt.b)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInsufficientData)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.expected, r, 1e-9)
		})
	}
}

func TestMonthlyEvolution(t *testing.T) {
	cleanResult, err := Clean(testutil.ProcurementRawBatch(), &meta.ProcurementDataset)
	assert.NoError(t, err)

	view, err := MonthlyEvolution(&cleanResult.Batch,
		"fecha_inicio_ejecuci_n", "tipo_de_contrato", "valor_contrato", 2018)
	assert.NoError(t, err)

	// The 2016 contract is outside the window; the rest bucket by
	// (month, type) ordered by month then category.
	assert.Equal(t, []string{"anio_mes", "tipo_de_contrato", "valor_contrato"}, view.Columns)
	assert.Len(t, view.Rows, 5)
	assert.Equal(t, "2020-03", view.Rows[0]["anio_mes"])
	assert.Equal(t, "prestacion de servicios", view.Rows[0]["tipo_de_contrato"])
	assert.Equal(t, float64(15000000), view.Rows[0]["valor_contrato"])
	assert.Equal(t, "2020-03", view.Rows[1]["anio_mes"])
	assert.Equal(t, "suministro", view.Rows[1]["tipo_de_contrato"])
	assert.Equal(t, "2021-08", view.Rows[4]["anio_mes"])
	assert.Equal(t, float64(310000000), view.Rows[4]["valor_contrato"])
}

func TestMetricByDepartment(t *testing.T) {
	view := joinedEducationView(t)

	mapped, err := MetricByDepartment(view,
		"c_digo_departamento", "departamento", "tasa_matriculaci_n_5_16", "a_o", 2020)
	assert.NoError(t, err)

	assert.Equal(t, []string{"codigo_departamento", "departamento", "tasa_matriculaci_n_5_16"}, mapped.Columns)
	assert.Len(t, mapped.Rows, 2)
	assert.Equal(t, "05", mapped.Rows[0]["codigo_departamento"])
	assert.Equal(t, 91.5, mapped.Rows[0]["tasa_matriculaci_n_5_16"])
	assert.Equal(t, "08", mapped.Rows[1]["codigo_departamento"])
	assert.Equal(t, 84.2, mapped.Rows[1]["tasa_matriculaci_n_5_16"])
}

func TestRenameColumn(t *testing.T) {
	view := &models.AggregateView{
		Columns: []string{"dpnom", "poblacion"},
		Rows:    []map[string]interface{}{{"dpnom": "antioquia", "poblacion": float64(1)}},
	}

	renamed := RenameColumn(view, "dpnom", "departamento_entidad")
	assert.Equal(t, []string{"departamento_entidad", "poblacion"}, renamed.Columns)
	assert.Equal(t, "antioquia", renamed.Rows[0]["departamento_entidad"])
	// Original untouched.
	assert.Equal(t, []string{"dpnom", "poblacion"}, view.Columns)
}

func TestMaxNumericAndFilterRows(t *testing.T) {
	view := &models.AggregateView{
		Columns: []string{"ano"},
		Rows: []map[string]interface{}{
			{"ano": float64(2019)}, {"ano": float64(2021)}, {"ano": float64(2020)},
		},
	}

	latest, ok := MaxNumeric(view, "ano")
	assert.True(t, ok)
	assert.Equal(t, float64(2021), latest)

	filtered := FilterRows(view, func(row map[string]interface{}) bool {
		return row["ano"].(float64) == latest
	})
	assert.Len(t, filtered.Rows, 1)

	_, ok = MaxNumeric(view, "mes")
	assert.False(t, ok)
}
