package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/cryptopulse/internal/domain/dto"
	"github.com/guttosm/cryptopulse/internal/domain/errs"
	"github.com/guttosm/cryptopulse/internal/logger"
)

const internalErrorMessage = "Internal server error"

// ErrorHandler renders the last error a handler attached with c.Error.
//
// Status comes from errs.HTTPStatus: NotFound → 404, InvalidInput → 400,
// anything else → 500. A 500 body carries only a generic message; the cause is
// logged with the request ID. Nothing is written if the handler already
// responded.
//
// Usage:
//
//	router.Use(middleware.ErrorHandler)
//	...
//	if err != nil {
//	    _ = c.Error(err)
//	    return
//	}
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	err := c.Errors.Last().Err
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rid, _ := c.Get(RequestIDKey)
		logger.L().Error().
			Str("request_id", toString(rid)).
			Str("path", c.Request.URL.Path).
			Err(err).
			Msg("request failed")
		AbortWithError(c, status, internalErrorMessage, nil)
		return
	}
	AbortWithError(c, status, err.Error(), nil)
}

// AbortWithError stops the chain and writes a dto.ErrorResponse with status.
// err, when non-nil, is exposed as the response's "error" field, so callers
// must not pass internal failures here.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(status, message, err))
}
