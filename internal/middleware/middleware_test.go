package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/logger"
)

type tokenValidatorStub map[string]*models.JWTClaims

func (s tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString(logger.ActorKey)})
	})
	r.GET("/resource", handlers...)
	return r
}

func doRequest(r http.Handler, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	validator := tokenValidatorStub{"good": {UserID: "student-1", Capability: models.CapabilityStudent}}
	r := newTestRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer bad").Code)

	w := doRequest(r, "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"actor":"student-1"`)
}

func TestRequireCapability(t *testing.T) {
	validator := tokenValidatorStub{
		"mod":     {UserID: "teacher-1", Capability: models.CapabilityModerator},
		"student": {UserID: "student-1", Capability: models.CapabilityStudent},
		"weird":   {UserID: "x", Capability: models.Capability("root")},
	}
	r := newTestRouter(JWT(validator), RequireCapability(models.CapabilityModerator))

	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer mod").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "Bearer student").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "Bearer weird").Code)

	bare := newTestRouter(RequireCapability(models.CapabilityModerator))
	assert.Equal(t, http.StatusUnauthorized, doRequest(bare, "").Code)
}

func TestRateLimitPerActor(t *testing.T) {
	validator := tokenValidatorStub{
		"a": {UserID: "student-1", Capability: models.CapabilityStudent},
		"b": {UserID: "student-2", Capability: models.CapabilityStudent},
	}
	limiter := NewActorRateLimiter(0.001, 2)
	r := newTestRouter(JWT(validator), RateLimit(limiter))

	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer a").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer a").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r, "Bearer a").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer b").Code)
}

func TestActorRateLimiterEvictsIdleBuckets(t *testing.T) {
	limiter := NewActorRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("old"))
	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, limiter.Allow("new"))
	_, kept := limiter.limiters["old"]
	assert.False(t, kept)
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.paths = append(o.paths, method+" "+path)
	o.statuses = append(o.statuses, status)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/entries/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/entries/1", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"GET /entries/:id", "GET unmatched"}, obs.paths)
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNotFound}, obs.statuses)
}

type auditRecorderStub struct {
	logs []*models.AuditLog
}

func (s *auditRecorderStub) Record(_ context.Context, log *models.AuditLog) {
	s.logs = append(s.logs, log)
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditRecorderStub{}
	validator := tokenValidatorStub{"mod": {UserID: "teacher-1", Capability: models.CapabilityModerator}}
	r := gin.New()
	r.GET("/topics/:id/export", JWT(validator), Audit(recorder, models.AuditActionThreadExport, "discussion_topic"), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	for _, id := range []string{"t1", "missing"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/topics/"+id+"/export?format=pdf", nil)
		req.Header.Set("Authorization", "Bearer mod")
		r.ServeHTTP(w, req)
	}

	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionThreadExport, log.Action)
	assert.Equal(t, "t1", *log.ResourceID)
	assert.Equal(t, "teacher-1", *log.UserID)
	assert.Contains(t, string(log.NewValues), "format=pdf")
}
