package base

import (
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/brandonyach/teamworksams/pkg/table"
)

// WriteTable writes t as CSV to stdout, or to the named file. A .xlsx
// extension selects spreadsheet output.
func (c *Command) WriteTable(t *table.Table, output string) error {
	if output == "" {
		return t.WriteCSV(os.Stdout)
	}
	fs := afero.NewOsFs()
	if strings.HasSuffix(strings.ToLower(output), ".xlsx") {
		return t.WriteXLSXFile(fs, output, "Sheet1")
	}
	return t.WriteCSVFile(fs, output)
}

// ReadTable reads a CSV or XLSX file into a table.
func (c *Command) ReadTable(path string) (*table.Table, error) {
	fs := afero.NewOsFs()
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return table.ReadXLSXFile(fs, path)
	}
	return table.ReadCSVFile(fs, path)
}
