package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// ErrNoHeaders is returned when a dataset has no columns to render.
var ErrNoHeaders = errors.New("export: dataset has no headers")

// CSVExporter writes datasets as RFC 4180 CSV. Cells that a spreadsheet would
// evaluate as a formula are prefixed with a single quote.
type CSVExporter struct {
	// BOM prepends a UTF-8 byte order mark so spreadsheet tools detect the encoding.
	BOM bool
}

// NewCSVExporter builds a CSV exporter that emits a byte order mark.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{BOM: true}
}

// ContentType reports the MIME type of rendered output.
func (e *CSVExporter) ContentType() string {
	return "text/csv; charset=utf-8"
}

// Render encodes the dataset; title has no place in CSV output.
func (e *CSVExporter) Render(data Dataset, _ string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, ErrNoHeaders
	}

	var buf bytes.Buffer
	if e.BOM {
		buf.WriteString("\ufeff")
	}
	w := csv.NewWriter(&buf)

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = neutralizeFormula(row[header])
		}
		records = append(records, record)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func neutralizeFormula(cell string) string {
	if cell == "" {
		return cell
	}
	if strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
