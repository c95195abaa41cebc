package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/bookingplatform/errors"
	"github.com/kbukum/bookingplatform/logger"
)

// Recovery recovers from handler panics, logs the stack and answers with
// the generic internal error body.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithContext(c.Request.Context()).Error("Panic recovered", map[string]interface{}{
					logger.FieldError: fmt.Sprintf("%v", r),
					"stack":           string(debug.Stack()),
					"path":            c.Request.URL.Path,
					"method":          c.Request.Method,
				})
				appErr := apperrors.Internal(fmt.Errorf("panic: %v", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, appErr.ToResponse())
			}
		}()
		c.Next()
	}
}
