package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"scotland-capacity/internal/api/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler recovers from panics. API routes get the JSON error envelope;
// page routes get a plain 500.
func ErrorHandler(l *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		l.Error("panic recovered",
			zap.String("path", c.Request.URL.Path),
			zap.String("panic", fmt.Sprint(recovered)))

		if !strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.String(http.StatusInternalServerError, "Internal Server Error")
			c.Abort()
			return
		}
		msg := "An unexpected error occurred"
		if s, ok := recovered.(string); ok {
			msg = s
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: msg,
			},
		})
		c.Abort()
	})
}
