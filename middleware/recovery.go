package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/faycaldjilali/sorabo/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Recovery middleware recovers from panics, logs the stack and answers
// with a 500 carrying the request ID for correlation.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)

				logger.WithContext(c.Request.Context()).Error("panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}()

		c.Next()
	}
}
