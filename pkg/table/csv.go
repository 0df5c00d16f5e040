package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"
)

// ReadCSV parses CSV content into a Table. The first record is the header.
// Cells that parse as numbers become number values; everything else stays a
// string, and empty cells become Null.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	t := New(header...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv record: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(rec) {
				break
			}
			row[col] = parseCell(rec[i])
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// ReadCSVFile opens path on fs and parses it with ReadCSV.
func ReadCSVFile(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV writes the table as CSV with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.cols); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	rec := make([]string, len(t.cols))
	for _, r := range t.rows {
		for i, col := range t.cols {
			rec[i] = r.Get(col).String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path on fs, creating or truncating it.
func (t *Table) WriteCSVFile(fs afero.Fs, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return t.WriteCSV(f)
}

func parseCell(s string) Value {
	if s == "" {
		return Null
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		// Keep leading-zero identifiers like "007" as strings.
		if len(s) > 1 && s[0] == '0' && s[1] != '.' {
			return String(s)
		}
		return Number(f)
	}
	return String(s)
}
