package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/response"
)

type toolLookupService interface {
	Attach(ctx context.Context, actor models.Actor, assignmentID string, req dto.AttachToolRequest) (*models.ToolLookup, error)
	List(ctx context.Context, assignmentID string) ([]models.ToolLookup, error)
	ClearAssignment(ctx context.Context, actor models.Actor, assignmentID string) (*dto.PurgeResult, error)
	ClearTool(ctx context.Context, actor models.Actor, toolType, toolID string) (int64, error)
}

// ToolLookupHandler exposes assignment tool lookup endpoints.
type ToolLookupHandler struct {
	service toolLookupService
}

// NewToolLookupHandler builds a new handler.
func NewToolLookupHandler(service toolLookupService) *ToolLookupHandler {
	return &ToolLookupHandler{service: service}
}

// Attach godoc
// @Summary Attach a configuration tool to an assignment
// @Tags ToolLookups
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.AttachToolRequest true "Tool reference"
// @Success 201 {object} response.Envelope
// @Router /assignments/{id}/tool-lookups [post]
func (h *ToolLookupHandler) Attach(c *gin.Context) {
	var req dto.AttachToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid tool lookup payload"))
		return
	}
	lookup, err := h.service.Attach(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lookup)
}

// List godoc
// @Summary List tools attached to an assignment
// @Tags ToolLookups
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/tool-lookups [get]
func (h *ToolLookupHandler) List(c *gin.Context) {
	lookups, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lookups, nil)
}

// Clear godoc
// @Summary Remove every tool lookup of an assignment
// @Tags ToolLookups
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/tool-lookups [delete]
func (h *ToolLookupHandler) Clear(c *gin.Context) {
	result, err := h.service.ClearAssignment(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClearTool godoc
// @Summary Remove every lookup pointing at a tool
// @Tags ToolLookups
// @Produce json
// @Param type path string true "Tool type"
// @Param toolId path string true "Tool ID"
// @Success 200 {object} response.Envelope
// @Router /tools/{type}/{toolId}/lookups [delete]
func (h *ToolLookupHandler) ClearTool(c *gin.Context) {
	deleted, err := h.service.ClearTool(c.Request.Context(), actorFromContext(c), c.Param("type"), c.Param("toolId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}
