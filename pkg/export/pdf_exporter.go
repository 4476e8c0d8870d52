package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// IndentColumn names the optional numeric column used to indent a row's body text.
const IndentColumn = "depth"

const (
	pageWidth   = 190.0
	indentStep  = 6.0
	maxIndent   = 60.0
	lineHeight  = 5.0
	headerWidth = 40.0
)

// PDFExporter renders datasets as a sequence of indented blocks, one per row.
type PDFExporter struct {
	// BodyColumn is printed as wrapped text; every other header is printed as a label line.
	BodyColumn string
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter(bodyColumn string) *PDFExporter {
	return &PDFExporter{BodyColumn: bodyColumn}
}

// ContentType reports the MIME type of rendered output.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// Render creates a PDF document with an optional title.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	for _, row := range data.Rows {
		indent := rowIndent(row)
		left := 10 + indent
		width := pageWidth - indent

		pdf.SetFont("Arial", "B", 8)
		for _, header := range data.Headers {
			if header == e.BodyColumn || header == IndentColumn || row[header] == "" {
				continue
			}
			pdf.SetX(left)
			pdf.CellFormat(headerWidth, lineHeight, tr(header), "", 0, "", false, 0, "")
			pdf.CellFormat(width-headerWidth, lineHeight, tr(row[header]), "", 1, "", false, 0, "")
		}
		if e.BodyColumn != "" {
			pdf.SetFont("Arial", "", 10)
			pdf.SetX(left)
			pdf.MultiCell(width, lineHeight+1, tr(row[e.BodyColumn]), "L", "", false)
		}
		pdf.Ln(3)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func rowIndent(row map[string]string) float64 {
	depth, err := strconv.Atoi(strings.TrimSpace(row[IndentColumn]))
	if err != nil || depth <= 0 {
		return 0
	}
	indent := float64(depth) * indentStep
	if indent > maxIndent {
		return maxIndent
	}
	return indent
}
