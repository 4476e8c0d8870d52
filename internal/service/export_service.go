package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/thread"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/export"
	"github.com/noah-isme/discussion-api/pkg/sanitize"
)

type renderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

var threadExportHeaders = []string{"id", "parent_id", "author_id", export.IndentColumn, "created_at", "state", "notice", "message"}

// ExportService renders a topic's thread as a downloadable document.
type ExportService struct {
	entries   discussionEntryStore
	topics    discussionTopicReader
	csv       renderer
	pdf       renderer
	sanitizer *sanitize.Sanitizer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(entries discussionEntryStore, topics discussionTopicReader, csv, pdf renderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("message")
	}
	return &ExportService{entries: entries, topics: topics, csv: csv, pdf: pdf, sanitizer: sanitize.New(), logger: logger}
}

// ExportThread renders the topic in display order. Deleted entries appear only as their
// deletion notice; entries unreachable from a root are appended at the end.
func (s *ExportService) ExportThread(ctx context.Context, topicID string, format dto.ExportFormat) (*dto.ExportedFile, error) {
	var out renderer
	switch format {
	case dto.ExportFormatCSV, "":
		format = dto.ExportFormatCSV
		out = s.csv
	case dto.ExportFormatPDF:
		out = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	topic, err := s.topics.FindByID(ctx, topicID)
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to load topic")
	}
	entries, err := s.entries.ListByTopic(ctx, models.EntryFilter{TopicID: topicID, IncludeDeleted: true})
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to list topic entries")
	}

	roots, orphans := thread.BuildTree(entries)
	ordered := append(thread.Flatten(roots), orphans...)
	dataset := export.Dataset{Headers: threadExportHeaders, Rows: make([]map[string]string, 0, len(ordered))}
	for _, entry := range ordered {
		dataset.Rows = append(dataset.Rows, s.exportRow(entry))
	}

	body, err := out.Render(dataset, topic.Title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("thread exported", zap.String("topic_id", topicID), zap.String("format", string(format)), zap.Int("entries", len(ordered)))
	return &dto.ExportedFile{
		Filename:    fmt.Sprintf("topic_%s_%s.%s", exportFilenamePart(topicID), time.Now().UTC().Format("20060102_150405"), format),
		ContentType: out.ContentType(),
		Body:        body,
	}, nil
}

func (s *ExportService) exportRow(entry *models.DiscussionEntry) map[string]string {
	parent := ""
	if entry.ParentID != nil {
		parent = *entry.ParentID
	}
	message := ""
	if !entry.IsDeleted() {
		message = s.sanitizer.PlainText(entry.Message)
	}
	return map[string]string{
		"id":                entry.ID,
		"parent_id":         parent,
		"author_id":         entry.AuthorID,
		export.IndentColumn: strconv.Itoa(entry.Depth),
		"created_at":        entry.CreatedAt.UTC().Format(time.RFC3339),
		"state":             string(entry.State()),
		"notice":            entry.Notice(),
		"message":           message,
	}
}

func exportFilenamePart(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}
