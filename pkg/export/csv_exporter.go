package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is tabular report content. Rows are keyed by column name so sparse
// cells render as empty strings rather than shifting the record.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

func (t Table) record(row map[string]string) []string {
	record := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		record[i] = row[col]
	}
	return record
}

// CSVExporter renders a Table as RFC 4180 CSV with a header row.
type CSVExporter struct{}

// NewCSVExporter returns a stateless CSV renderer.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the table. The column list defines both the header row and
// the cell order of every record.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("csv export: table has no columns")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("csv export: header row: %w", err)
	}
	for i, row := range table.Rows {
		if err := w.Write(table.record(row)); err != nil {
			return nil, fmt.Errorf("csv export: row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv export: flush: %w", err)
	}
	return buf.Bytes(), nil
}
