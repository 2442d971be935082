package middleware

import (
	"github.com/gin-gonic/gin"
)

const IdempotencyKeyKey = "idempotency_key"

// IdempotencyMiddleware propagates the Idempotency-Key header so the
// booking handler can replay stored responses for duplicate requests.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		c.Set(IdempotencyKeyKey, idempotencyKey)
		c.Next()
	}
}
