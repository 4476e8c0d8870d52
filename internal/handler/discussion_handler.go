package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/response"
)

type discussionService interface {
	Reply(ctx context.Context, actor models.Actor, req dto.ReplyRequest) (*dto.EntryView, error)
	Edit(ctx context.Context, actor models.Actor, entryID string, req dto.EditEntryRequest) (*dto.EntryView, error)
	Delete(ctx context.Context, actor models.Actor, entryID string) (*dto.EntryView, error)
	Get(ctx context.Context, entryID string) (*dto.EntryView, error)
	ListReplies(ctx context.Context, entryID string) ([]dto.EntryView, error)
	Thread(ctx context.Context, topicID string) (*dto.ThreadView, error)
	VerifyDepths(ctx context.Context, topicID string) (*dto.IntegrityReport, error)
}

type threadExporter interface {
	ExportThread(ctx context.Context, topicID string, format dto.ExportFormat) (*dto.ExportedFile, error)
}

// DiscussionHandler exposes entry endpoints.
type DiscussionHandler struct {
	service  discussionService
	exporter threadExporter
}

// NewDiscussionHandler builds a new handler.
func NewDiscussionHandler(service discussionService, exporter threadExporter) *DiscussionHandler {
	return &DiscussionHandler{service: service, exporter: exporter}
}

// Reply godoc
// @Summary Post an entry
// @Description Creates a root entry, or a nested reply when parent_id is set.
// @Tags Discussions
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param Idempotency-Key header string false "Client deduplication key"
// @Param payload body dto.ReplyRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /topics/{id}/entries [post]
func (h *DiscussionHandler) Reply(c *gin.Context) {
	var req dto.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid entry payload"))
		return
	}
	req.TopicID = c.Param("id")
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyHeader))

	view, err := h.service.Reply(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Thread godoc
// @Summary Get the nested thread of a topic
// @Tags Discussions
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Router /topics/{id}/thread [get]
func (h *DiscussionHandler) Thread(c *gin.Context) {
	view, err := h.service.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Export godoc
// @Summary Download a topic thread
// @Tags Discussions
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Topic ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /topics/{id}/export [get]
func (h *DiscussionHandler) Export(c *gin.Context) {
	format := dto.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ExportFormatCSV))))
	file, err := h.exporter.ExportThread(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Integrity godoc
// @Summary Verify stored depths of a topic
// @Tags Discussions
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Router /topics/{id}/integrity [get]
func (h *DiscussionHandler) Integrity(c *gin.Context) {
	report, err := h.service.VerifyDepths(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Get godoc
// @Summary Get an entry
// @Tags Discussions
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /entries/{id} [get]
func (h *DiscussionHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Replies godoc
// @Summary List direct replies of an entry
// @Tags Discussions
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /entries/{id}/replies [get]
func (h *DiscussionHandler) Replies(c *gin.Context) {
	views, err := h.service.ListReplies(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil, map[string]interface{}{"count": len(views)})
}

// Edit godoc
// @Summary Edit an entry
// @Tags Discussions
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.EditEntryRequest true "New message"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /entries/{id} [put]
func (h *DiscussionHandler) Edit(c *gin.Context) {
	var req dto.EditEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid entry payload"))
		return
	}
	view, err := h.service.Edit(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Soft delete an entry
// @Description Idempotent; the entry stays addressable with its content hidden.
// @Tags Discussions
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /entries/{id} [delete]
func (h *DiscussionHandler) Delete(c *gin.Context) {
	view, err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
