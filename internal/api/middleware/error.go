package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/pkg/errors"
	"github.com/pulsehq/insight-engine/pkg/utils"
)

// ErrorHandlingMiddleware recovers from panics and converts accumulated
// request errors into structured responses.
func ErrorHandlingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"panic":  recovered,
			"stack":  string(debug.Stack()),
		}).Error("Panic recovered in HTTP handler")

		utils.SendError(c, http.StatusInternalServerError, "Internal server error")
		c.Abort()
	})
}

// HandleError writes an error response using the AppError status when the
// error carries one.
func HandleError(c *gin.Context, logger *logrus.Logger, err error) {
	status := errors.GetStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed")
	}
	utils.SendError(c, status, err.Error())
}
