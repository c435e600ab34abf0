package middleware

import (
	"errors"
	"net/http"

	"loyaltydesk/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached to the gin context as a JSON
// envelope. Authorization failures additionally instruct the client to drop
// its session: authenticated-but-unauthorized is treated the same as
// unauthenticated.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		err := last.Err

		var base errutil.BaseError
		if errors.As(err, &base) {
			if base.Code == errutil.StatusUnauthorized || base.Code == errutil.StatusForbidden {
				c.Header("X-Session-Terminate", "true")
			}
			c.JSON(base.Code.HTTPStatus(), base.JSON())
			return
		}

		status := errutil.StatusOf(err)
		if status == errutil.StatusTimeout {
			c.JSON(status.HTTPStatus(), gin.H{
				"error": gin.H{"code": status, "message": "request timed out", "retryable": true},
			})
			return
		}

		zap.L().Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": errutil.StatusInternal, "message": "internal error"},
		})
	}
}
