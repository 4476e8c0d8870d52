package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, clientID string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Value(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if clientID != "" {
		req.Header.Set(Header, clientID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareGeneratesID(t *testing.T) {
	w := serve(t, "")
	_, err := uuid.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, w.Body.String(), w.Header().Get(Header))
}

func TestMiddlewareKeepsWellFormedClientID(t *testing.T) {
	assert.Equal(t, "req-123.a_b:c", serve(t, "req-123.a_b:c").Body.String())
}

func TestMiddlewareReplacesUnsafeClientID(t *testing.T) {
	for _, bad := range []string{strings.Repeat("x", 129), "has space", "line break", "<script>"} {
		w := serve(t, bad)
		assert.NotEqual(t, bad, w.Body.String())
		_, err := uuid.Parse(w.Body.String())
		assert.NoError(t, err, bad)
	}
}

func TestValueOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
