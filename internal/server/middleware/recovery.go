package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mobile-chat/server/internal/autherr"
)

// Recovery is the catch-all boundary: panics become the same structured
// error shape the guards emit, with a generic code, so clients never see
// unstructured error text.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, autherr.Response{
					StatusCode: http.StatusInternalServerError,
					ErrorType:  autherr.Unauthorized,
					Message:    "Internal server error",
					Path:       c.Request.URL.Path,
					Timestamp:  time.Now().UTC(),
					RequestID:  GetRequestID(c),
				})
			}
		}()
		c.Next()
	}
}
