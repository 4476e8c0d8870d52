package dto

// ExportFormat selects the rendering of a thread export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportedFile is a rendered download.
type ExportedFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
