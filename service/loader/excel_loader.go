/*
 * @module service/loader/excel_loader
 * @description Spreadsheet ingestion and export: reads xlsx uploads into raw batches and writes the fact table plus dimensions back out as xlsx
 * @architecture Adapter over excelize - the pipeline only sees RawBatch/FactTable
 * @documentReference service/models/records.go
 * @stateFlow upload stream -> first sheet -> header normalization -> RawBatch; FactTable + dimensions -> sheets -> xlsx stream
 * @rules The first row is the header; unreadable files or empty sheets yield a ParseError; export is the only spreadsheet-shaped output of the service
 * @dependencies fmt, io, github.com/xuri/excelize/v2, opendata-service/service/models, opendata-service/service/pipeline
 * @refs api/controllers/dataset_controller.go, api/controllers/pipeline_controller.go
 */

package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"opendata-service/service/models"
	"opendata-service/service/pipeline"
)

// Load reads the first sheet of an xlsx stream into a raw batch. Headers come
// from the first row and are normalized to machine-safe column names; fully
// empty rows are skipped.
func Load(r io.Reader, source string) (*models.RawBatch, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &models.ParseError{Source: source, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &models.ParseError{Source: source, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &models.ParseError{Source: source, Err: err}
	}
	if len(rows) == 0 {
		return nil, &models.ParseError{Source: source, Err: errors.New("sheet is empty")}
	}

	header := rows[0]
	columns := make([]string, len(header))
	for i, cell := range header {
		name := pipeline.NormalizeColumnName(cell)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = name
	}

	batch := &models.RawBatch{Columns: columns}
	for _, row := range rows[1:] {
		record := make(models.RawRecord, len(columns))
		empty := true
		for i, col := range columns {
			if i < len(row) && row[i] != "" {
				record[col] = row[i]
				empty = false
			}
		}
		if !empty {
			batch.Records = append(batch.Records, record)
		}
	}
	return batch, nil
}

// Export sheet names.
const (
	FactSheet = "fact_table"
	TimeSheet = "dim_tiempo"
	GeoSheet  = "dim_geo"
)

// WriteFactTable builds an xlsx workbook with the fact table and both
// dimensions, for the on-demand download.
func WriteFactTable(fact *models.FactTable, timeDim, geoDim *models.DimensionTable) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", FactSheet); err != nil {
		return nil, err
	}

	header := []interface{}{timeDim.KeyColumn, geoDim.KeyColumn}
	for _, col := range fact.MeasureColumns {
		header = append(header, col)
	}
	if err := f.SetSheetRow(FactSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range fact.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{row.TimeKey, row.GeoKey}
		for _, col := range fact.MeasureColumns {
			if v, ok := row.Measures[col]; ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		if err := f.SetSheetRow(FactSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	if err := writeDimensionSheet(f, TimeSheet, timeDim); err != nil {
		return nil, err
	}
	if err := writeDimensionSheet(f, GeoSheet, geoDim); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDimensionSheet(f *excelize.File, sheet string, dim *models.DimensionTable) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{dim.KeyColumn}
	for _, col := range dim.Columns {
		header = append(header, col)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range dim.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{row.Key}
		for _, col := range dim.Columns {
			values = append(values, models.CanonicalString(row.Attributes[col]))
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// Concat appends batches column-union-wise, used when several reference files
// cover different year ranges.
func Concat(batches ...*models.RawBatch) *models.RawBatch {
	out := &models.RawBatch{}
	seen := make(map[string]struct{})
	for _, batch := range batches {
		if batch == nil {
			continue
		}
		for _, col := range batch.Columns {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				out.Columns = append(out.Columns, col)
			}
		}
		out.Records = append(out.Records, batch.Records...)
	}
	return out
}
