package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/smartinvoice/smartinvoice/internal/types"
)

// RequestIDMiddleware tags every request with an id, taken from the
// X-Request-ID header when the caller supplies one.
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST)
	}

	ctx := types.SetRequestID(c.Request.Context(), requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header(types.HeaderRequestID, requestID)
	c.Next()
}
