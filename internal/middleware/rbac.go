package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/response"
)

// RequireCapability only lets through actors whose capability tag is listed.
func RequireCapability(allowed ...models.Capability) gin.HandlerFunc {
	set := make(map[models.Capability]struct{}, len(allowed))
	for _, capability := range allowed {
		set[capability] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := set[claims.Actor().Capability]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
