package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	customErrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

func TestErrorHandler(t *testing.T) {
	testCases := []struct {
		name               string
		err                error
		ginErrorType       gin.ErrorType
		expectedStatusCode int
		expectedBody       map[string]any
		debugMode          bool
	}{
		{
			name:               "Standard Go Error - Debug Mode",
			err:                errors.New("internal processing error"),
			ginErrorType:       gin.ErrorTypePrivate,
			expectedStatusCode: http.StatusInternalServerError,
			expectedBody: map[string]any{
				"type":    "SERVER_ERROR",
				"code":    http.StatusInternalServerError,
				"message": "Internal Server Error",
				"details": "internal processing error",
			},
			debugMode: true,
		},
		{
			name:               "Standard Go Error - Production Mode",
			err:                errors.New("internal processing error"),
			ginErrorType:       gin.ErrorTypePrivate,
			expectedStatusCode: http.StatusInternalServerError,
			expectedBody: map[string]any{
				"code":    http.StatusInternalServerError,
				"message": "Internal Server Error",
			},
		},
		{
			name:               "Gin Public Error",
			err:                errors.New("invalid input provided"),
			ginErrorType:       gin.ErrorTypePublic,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody: map[string]any{
				"type":    "VALIDATION_ERROR",
				"code":    http.StatusBadRequest,
				"message": "invalid input provided",
			},
		},
		{
			name:               "Gin Bind Error",
			err:                errors.New("failed to bind form"),
			ginErrorType:       gin.ErrorTypeBind,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody: map[string]any{
				"code":    http.StatusBadRequest,
				"message": "Failed to bind request",
				"details": "failed to bind form",
			},
			debugMode: true,
		},
		{
			name:               "Validation Failure",
			err:                customErrors.ValidationFailed("unsupported file type", "detected image/gif"),
			ginErrorType:       gin.ErrorTypePublic,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody: map[string]any{
				"type":    "VALIDATION_ERROR",
				"code":    http.StatusBadRequest,
				"message": "unsupported file type",
				"details": "detected image/gif",
			},
		},
		{
			name:               "Startup Failure hides detail",
			err:                customErrors.StartupFailure("recognition pool is not running", errors.New("tessdata missing")),
			ginErrorType:       gin.ErrorTypePrivate,
			expectedStatusCode: http.StatusServiceUnavailable,
			expectedBody: map[string]any{
				"type":    "STARTUP_FAILURE",
				"code":    http.StatusServiceUnavailable,
				"message": "recognition pool is not running",
			},
		},
		{
			name:               "Authentication Failure",
			err:                customErrors.AuthenticationFailed("invalid API key"),
			ginErrorType:       gin.ErrorTypePrivate,
			expectedStatusCode: http.StatusUnauthorized,
			expectedBody: map[string]any{
				"type":    "AUTHENTICATION_ERROR",
				"code":    http.StatusUnauthorized,
				"message": "invalid API key",
			},
		},
		{
			name:               "Wrapped AppError",
			err:                fmt.Errorf("handler: %w", customErrors.ValidationFailed("file is required", "")),
			ginErrorType:       gin.ErrorTypePrivate,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody: map[string]any{
				"code":    http.StatusBadRequest,
				"message": "file is required",
			},
		},
		{
			name:               "Nil Error",
			err:                nil,
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.debugMode {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			defer gin.SetMode(gin.TestMode)

			w := httptest.NewRecorder()
			_, r := gin.CreateTestContext(w)
			req, _ := http.NewRequest("GET", "/test", nil)

			r.Use(ErrorHandler())
			r.GET("/test", func(ctx *gin.Context) {
				if tc.err != nil {
					_ = ctx.Error(tc.err).SetType(tc.ginErrorType)
				} else {
					ctx.String(http.StatusOK, "OK")
				}
			})
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedStatusCode, w.Code)

			if tc.expectedBody == nil {
				assert.Equal(t, "OK", w.Body.String())
				return
			}

			var responseBody map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responseBody))
			for key, expectedValue := range tc.expectedBody {
				assert.Contains(t, responseBody, key)
				assert.Equal(t, fmt.Sprintf("%v", expectedValue), fmt.Sprintf("%v", responseBody[key]), "Field mismatch: %s", key)
			}
			if _, exists := tc.expectedBody["details"]; !exists {
				assert.NotContains(t, responseBody, "details")
			}
		})
	}
}

func TestErrorHandler_LeavesWrittenResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)

	r.Use(ErrorHandler())
	r.POST("/process", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "jobId": "job-1"})
		_ = c.Error(customErrors.RecognitionFailure("recognition failed", errors.New("engine crashed")))
	})

	req, _ := http.NewRequest("POST", "/process", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"success":false,"jobId":"job-1"}`, w.Body.String())
}

func TestErrorHandler_RateLimitAddsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)

	r.Use(ErrorHandler())
	r.GET("/test", func(c *gin.Context) {
		_ = c.Error(customErrors.RateLimitExceeded("Too many requests", 30))
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "retry after 30 seconds")
}
