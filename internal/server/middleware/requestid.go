package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "requestID"

// RequestIDHeader is the header the request id is read from and echoed to.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request id to the context and response, reusing the
// caller's id when one is supplied.
func RequestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Set(requestIDKey, id)
	c.Writer.Header().Set(RequestIDHeader, id)
	c.Next()
}

// GetRequestID returns the request id set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
