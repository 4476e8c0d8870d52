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

type topicService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateTopicRequest) (*models.Topic, error)
	Get(ctx context.Context, id string) (*models.Topic, error)
	Lock(ctx context.Context, actor models.Actor, id string) (*models.Topic, error)
	Unlock(ctx context.Context, actor models.Actor, id string) (*models.Topic, error)
}

// TopicHandler exposes topic endpoints.
type TopicHandler struct {
	service topicService
}

// NewTopicHandler builds a new handler.
func NewTopicHandler(service topicService) *TopicHandler {
	return &TopicHandler{service: service}
}

// Create godoc
// @Summary Open a topic
// @Tags Topics
// @Accept json
// @Produce json
// @Param payload body dto.CreateTopicRequest true "Topic payload"
// @Success 201 {object} response.Envelope
// @Router /topics [post]
func (h *TopicHandler) Create(c *gin.Context) {
	var req dto.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid topic payload"))
		return
	}
	topic, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// Get godoc
// @Summary Get a topic
// @Tags Topics
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Router /topics/{id} [get]
func (h *TopicHandler) Get(c *gin.Context) {
	topic, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// Lock godoc
// @Summary Lock a topic
// @Tags Topics
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Router /topics/{id}/lock [post]
func (h *TopicHandler) Lock(c *gin.Context) {
	topic, err := h.service.Lock(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// Unlock godoc
// @Summary Unlock a topic
// @Tags Topics
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Router /topics/{id}/unlock [post]
func (h *TopicHandler) Unlock(c *gin.Context) {
	topic, err := h.service.Unlock(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}
