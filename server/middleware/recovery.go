package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
)

// Recovery recovers from handler panics, logs the stack and answers with an
// INTERNAL_ERROR body. Nothing is written if the response already started.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.WithContext(c.Request.Context()).Error("Panic recovered", map[string]interface{}{
				logger.FieldError: fmt.Sprintf("%v", rec),
				"stack":           string(debug.Stack()),
				"path":            c.Request.URL.Path,
				"method":          c.Request.Method,
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			resp := apperrors.Internal(fmt.Errorf("panic: %v", rec)).ToResponse()
			c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
		}()
		c.Next()
	}
}
