package requestid

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

const contextKey = "request_id"

// client ids are echoed into logs and response headers, so only a safe token shape is kept
var validID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Middleware tags each request with an id, reusing a well-formed client supplied one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !validID.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// Value returns the request id, or "" outside the middleware.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
