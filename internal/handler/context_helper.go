package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/discussion-api/internal/middleware"
	"github.com/noah-isme/discussion-api/internal/models"
)

// IdempotencyHeader carries the client supplied deduplication key for replies.
const IdempotencyHeader = "Idempotency-Key"

func actorFromContext(c *gin.Context) models.Actor {
	return middleware.ClaimsFromContext(c).Actor()
}
