package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeyRequestID is both the header and the gin context key for the request
// correlation id.
const KeyRequestID = "X-Request-ID"

// RequestID tags every request with a correlation id. An id supplied by
// the caller is kept so ids stay stable across service hops; otherwise a
// fresh one is minted. The id is echoed in the response header and made
// available to the access log and error paths via the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(KeyRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(KeyRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Next()
	}
}
