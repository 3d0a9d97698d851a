package loader

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"opendata-service/service/models"
)

func populationWorkbook(t *testing.T) *bytes.Buffer {
	f := excelize.NewFile()
	defer f.Close()

	assert.NoError(t, f.SetSheetRow("Sheet1", "A1",
		&[]interface{}{"DPNOM", "DPMP", "AÑO", "ÁREA GEOGRÁFICA", "Población"}))
	assert.NoError(t, f.SetSheetRow("Sheet1", "A2",
		&[]interface{}{"Antioquia", "Medellín", "2020", "Total", "2500000"}))
	assert.NoError(t, f.SetSheetRow("Sheet1", "A3",
		&[]interface{}{"", "", "", "", ""}))
	assert.NoError(t, f.SetSheetRow("Sheet1", "A4",
		&[]interface{}{"Atlántico", "Barranquilla", "2020", "Total", "1200000"}))

	buf, err := f.WriteToBuffer()
	assert.NoError(t, err)
	return buf
}

func TestLoadNormalizesHeadersAndSkipsEmptyRows(t *testing.T) {
	batch, err := Load(populationWorkbook(t), "poblacion.xlsx")
	assert.NoError(t, err)

	assert.Equal(t, []string{"dpnom", "dpmp", "ano", "area_geografica", "poblacion"}, batch.Columns)
	assert.Len(t, batch.Records, 2)
	assert.Equal(t, "Antioquia", batch.Records[0]["dpnom"])
	assert.Equal(t, "2500000", batch.Records[0]["poblacion"])
}

func TestLoadRejectsGarbage(t *testing.T) {
	batch, err := Load(strings.NewReader("not a spreadsheet"), "garbage.bin")
	assert.Nil(t, batch)

	var parseErr *models.ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "garbage.bin", parseErr.Source)
}

func TestWriteFactTableRoundTrip(t *testing.T) {
	timeDim := &models.DimensionTable{
		Name: "tiempo", KeyColumn: "id_tiempo", Columns: []string{"a_o"},
		Rows: []models.DimensionRow{
			{Key: 1, Attributes: map[string]interface{}{"a_o": float64(2020)}},
			{Key: 2, Attributes: map[string]interface{}{"a_o": float64(2021)}},
		},
	}
	geoDim := &models.DimensionTable{
		Name: "geo", KeyColumn: "id_geo",
		Columns: []string{"c_digo_departamento", "departamento", "municipio"},
		Rows: []models.DimensionRow{
			{Key: 1, Attributes: map[string]interface{}{
				"c_digo_departamento": "05", "departamento": "antioquia", "municipio": "envigado"}},
		},
	}
	fact := &models.FactTable{
		MeasureColumns: []string{"cobertura_neta"},
		Rows: []models.FactRow{
			{TimeKey: 1, GeoKey: 1, Measures: map[string]float64{"cobertura_neta": 88.0}},
			{TimeKey: 2, GeoKey: 1, Measures: map[string]float64{}},
		},
	}

	f, err := WriteFactTable(fact, timeDim, geoDim)
	assert.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{FactSheet, TimeSheet, GeoSheet}, f.GetSheetList())

	buf, err := f.WriteToBuffer()
	assert.NoError(t, err)

	// The first sheet is the fact table; reading it back goes through the
	// same loader as uploads.
	batch, err := Load(buf, "tabla_hechos.xlsx")
	assert.NoError(t, err)
	assert.Equal(t, []string{"id_tiempo", "id_geo", "cobertura_neta"}, batch.Columns)
	assert.Len(t, batch.Records, 2)
	assert.Equal(t, "88", batch.Records[0]["cobertura_neta"])
	// The absent optional measure stays an empty cell.
	_, ok := batch.Records[1]["cobertura_neta"]
	assert.False(t, ok)
}

func TestConcat(t *testing.T) {
	a := &models.RawBatch{
		Columns: []string{"dpnom", "poblacion"},
		Records: []models.RawRecord{{"dpnom": "Antioquia", "poblacion": "1"}},
	}
	b := &models.RawBatch{
		Columns: []string{"dpnom", "poblacion", "ano"},
		Records: []models.RawRecord{{"dpnom": "Atlántico", "poblacion": "2", "ano": "2021"}},
	}

	combined := Concat(a, nil, b)
	assert.Equal(t, []string{"dpnom", "poblacion", "ano"}, combined.Columns)
	assert.Len(t, combined.Records, 2)
}
