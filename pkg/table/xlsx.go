package table

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// ReadXLSXFile parses the first sheet of an xlsx workbook into a Table. The
// first row is the header. Cells are typed the same way ReadCSV types them.
func ReadXLSXFile(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	wb, err := excelize.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	if sheet == "" {
		return New(), nil
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return New(), nil
	}
	t := New(rows[0]...)
	for _, rec := range rows[1:] {
		row := make(Row, len(rows[0]))
		for i, col := range rows[0] {
			if i >= len(rec) {
				break
			}
			row[col] = parseCell(rec[i])
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// WriteXLSXFile writes the table as a single-sheet workbook at path.
func (t *Table) WriteXLSXFile(fs afero.Fs, path, sheet string) error {
	if sheet == "" {
		sheet = "Sheet1"
	}
	wb := excelize.NewFile()
	defer wb.Close()
	if sheet != "Sheet1" {
		if err := wb.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("naming sheet: %w", err)
		}
	}

	header := make([]any, len(t.cols))
	for i, c := range t.cols {
		header[i] = c
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for ri, r := range t.rows {
		rec := make([]any, len(t.cols))
		for ci, col := range t.cols {
			v := r.Get(col)
			switch v.Kind() {
			case KindNumber:
				f, _ := v.Float()
				rec[ci] = f
			case KindBool:
				b, _ := v.Bool()
				rec[ci] = b
			case KindNull:
				rec[ci] = nil
			default:
				rec[ci] = v.String()
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", ri, err)
		}
		if err := wb.SetSheetRow(sheet, cell, &rec); err != nil {
			return fmt.Errorf("writing row %d: %w", ri, err)
		}
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := wb.Write(f); err != nil {
		return fmt.Errorf("writing workbook %s: %w", path, err)
	}
	return nil
}
