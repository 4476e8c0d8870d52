package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

type topicServiceMock struct {
	lastActor models.Actor
	locked    map[string]bool
}

func (m *topicServiceMock) Create(ctx context.Context, actor models.Actor, req dto.CreateTopicRequest) (*models.Topic, error) {
	m.lastActor = actor
	return &models.Topic{ID: "t1", Title: req.Title, CreatedBy: actor.ID}, nil
}

func (m *topicServiceMock) Get(ctx context.Context, id string) (*models.Topic, error) {
	return &models.Topic{ID: id, Locked: m.locked[id]}, nil
}

func (m *topicServiceMock) Lock(ctx context.Context, actor models.Actor, id string) (*models.Topic, error) {
	if !actor.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only moderators may lock topics")
	}
	m.locked[id] = true
	return &models.Topic{ID: id, Locked: true}, nil
}

func (m *topicServiceMock) Unlock(ctx context.Context, actor models.Actor, id string) (*models.Topic, error) {
	m.locked[id] = false
	return &models.Topic{ID: id}, nil
}

type toolLookupServiceMock struct {
	clearedType string
	clearedID   string
}

func (m *toolLookupServiceMock) Attach(ctx context.Context, actor models.Actor, assignmentID string, req dto.AttachToolRequest) (*models.ToolLookup, error) {
	return &models.ToolLookup{AssignmentID: assignmentID, ToolID: req.ToolID, ToolType: req.ToolType}, nil
}

func (m *toolLookupServiceMock) List(ctx context.Context, assignmentID string) ([]models.ToolLookup, error) {
	return []models.ToolLookup{{AssignmentID: assignmentID, ToolID: "rubric-1", ToolType: "rubric"}}, nil
}

func (m *toolLookupServiceMock) ClearAssignment(ctx context.Context, actor models.Actor, assignmentID string) (*dto.PurgeResult, error) {
	return nil, errors.New("database unavailable")
}

func (m *toolLookupServiceMock) ClearTool(ctx context.Context, actor models.Actor, toolType, toolID string) (int64, error) {
	m.clearedType = toolType
	m.clearedID = toolID
	return 3, nil
}

func TestTopicHandlerLockRequiresModerator(t *testing.T) {
	svc := &topicServiceMock{locked: map[string]bool{}}
	h := NewTopicHandler(svc)

	c, w := newHandlerContext(http.MethodPost, "/topics/t1/lock", nil, &models.JWTClaims{UserID: "student-1", Capability: models.CapabilityStudent})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Lock(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newHandlerContext(http.MethodPost, "/topics/t1/lock", nil, &models.JWTClaims{UserID: "teacher-1", Capability: models.CapabilityModerator})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Lock(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.locked["t1"])

	c, w = newHandlerContext(http.MethodPost, "/topics/t1/unlock", nil, &models.JWTClaims{UserID: "teacher-1", Capability: models.CapabilityModerator})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Unlock(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.locked["t1"])
}

func TestTopicHandlerCreate(t *testing.T) {
	svc := &topicServiceMock{locked: map[string]bool{}}
	h := NewTopicHandler(svc)

	c, w := newHandlerContext(http.MethodPost, "/topics", []byte(`{"title":"Week 1"}`), &models.JWTClaims{UserID: "teacher-1", Capability: models.CapabilityModerator})
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "teacher-1", svc.lastActor.ID)

	var payload struct {
		Data models.Topic `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "Week 1", payload.Data.Title)

	c, w = newHandlerContext(http.MethodPost, "/topics", []byte(`nope`), nil)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToolLookupHandlerEndpoints(t *testing.T) {
	svc := &toolLookupServiceMock{}
	h := NewToolLookupHandler(svc)
	moderator := &models.JWTClaims{UserID: "teacher-1", Capability: models.CapabilityModerator}

	c, w := newHandlerContext(http.MethodPost, "/assignments/a1/tool-lookups", []byte(`{"tool_id":"rubric-1","tool_type":"rubric"}`), moderator)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.Attach(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newHandlerContext(http.MethodGet, "/assignments/a1/tool-lookups", nil, moderator)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rubric-1")

	c, w = newHandlerContext(http.MethodDelete, "/assignments/a1/tool-lookups", nil, moderator)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.Clear(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	c, w = newHandlerContext(http.MethodDelete, "/tools/rubric/rubric-1/lookups", nil, moderator)
	c.Params = gin.Params{{Key: "type", Value: "rubric"}, {Key: "toolId", Value: "rubric-1"}}
	h.ClearTool(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rubric", svc.clearedType)
	assert.Equal(t, "rubric-1", svc.clearedID)
	assert.Contains(t, w.Body.String(), `"deleted":3`)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	healthy.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)

	degraded := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	degraded.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	degraded.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
