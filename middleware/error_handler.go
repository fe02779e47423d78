package middleware

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON body written for errors raised through c.Error.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code"`
}

// ErrorHandler renders the last error attached to the context. Handlers that
// already wrote a body are left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		err := last.Err

		var appError *errors.AppError
		if stderrors.As(err, &appError) {
			statusCode := appError.GetHTTPStatus()
			logger.LogHTTPError(c, err, statusCode, fmt.Sprintf("%s error", appError.Type))

			response := ErrorResponse{
				Type:    string(appError.Type),
				Message: appError.Message,
				Code:    strconv.Itoa(statusCode),
			}
			if appError.Detail != "" && exposesDetail(appError.Type) {
				response.Details = appError.Detail
			}
			if appError.Type == errors.RateLimitError && c.Writer.Header().Get("Retry-After") == "" {
				c.Header("Retry-After", "60")
			}
			c.AbortWithStatusJSON(statusCode, response)
			return
		}

		if last.Type == gin.ErrorTypeBind {
			logger.LogHTTPError(c, err, http.StatusBadRequest, "Request binding error")
			response := ErrorResponse{
				Type:    string(errors.ValidationError),
				Message: "Failed to bind request",
				Code:    strconv.Itoa(http.StatusBadRequest),
			}
			if gin.IsDebugging() {
				response.Details = err.Error()
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, response)
			return
		}

		if last.Type == gin.ErrorTypePublic {
			logger.LogHTTPError(c, err, http.StatusBadRequest, "Public error")
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Type:    string(errors.ValidationError),
				Message: err.Error(),
				Code:    strconv.Itoa(http.StatusBadRequest),
			})
			return
		}

		logger.LogHTTPError(c, err, http.StatusInternalServerError, "Unexpected server error")
		response := ErrorResponse{
			Type:    string(errors.ServerError),
			Message: "Internal Server Error",
			Code:    strconv.Itoa(http.StatusInternalServerError),
		}
		if gin.IsDebugging() {
			response.Details = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, response)
	}
}

// exposesDetail reports whether the detail of an error kind is safe to show
// to callers outside debug mode.
func exposesDetail(t errors.ErrorType) bool {
	switch t {
	case errors.ValidationError, errors.RateLimitError, errors.RecognitionFailureError:
		return true
	default:
		return gin.IsDebugging()
	}
}
