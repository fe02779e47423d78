package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NomadCrew/nomad-crew-ocr/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockConfig := &config.ServerConfig{
		AllowedOrigins: []string{"http://localhost:3000", "*.treuhand.ch"},
	}
	middleware := CORSMiddleware(mockConfig)

	testHandler := func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}

	testCases := []struct {
		name           string
		requestOrigin  string
		isOptions      bool
		expectedStatus int
		expectedOrigin string
	}{
		{
			name:           "Allowed Origin - Simple Request",
			requestOrigin:  "http://localhost:3000",
			expectedStatus: http.StatusOK,
			expectedOrigin: "http://localhost:3000",
		},
		{
			name:           "Wildcard Subdomain - Simple Request",
			requestOrigin:  "https://app.treuhand.ch",
			expectedStatus: http.StatusOK,
			expectedOrigin: "https://app.treuhand.ch",
		},
		{
			name:           "Disallowed Origin - Simple Request",
			requestOrigin:  "http://malicious.com",
			expectedStatus: http.StatusForbidden,
			expectedOrigin: "",
		},
		{
			name:           "No Origin Header - Simple Request",
			requestOrigin:  "",
			expectedStatus: http.StatusOK,
			expectedOrigin: "",
		},
		{
			name:           "Allowed Origin - Preflight Request",
			requestOrigin:  "http://localhost:3000",
			isOptions:      true,
			expectedStatus: http.StatusNoContent,
			expectedOrigin: "http://localhost:3000",
		},
		{
			name:           "Disallowed Origin - Preflight Request",
			requestOrigin:  "http://malicious.com",
			isOptions:      true,
			expectedStatus: http.StatusForbidden,
			expectedOrigin: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := gin.New()
			r.Use(middleware)
			r.GET("/test", testHandler)
			r.OPTIONS("/test", testHandler)

			method := http.MethodGet
			if tc.isOptions {
				method = http.MethodOptions
			}
			req, _ := http.NewRequest(method, "/test", nil)
			if tc.requestOrigin != "" {
				req.Header.Set("Origin", tc.requestOrigin)
			}
			if tc.isOptions {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}

			r.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.Equal(t, tc.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tc.isOptions && tc.expectedOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Api-Key")
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
			}
		})
	}
}

func TestCORSMiddleware_AllowAll(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, origins := range [][]string{nil, {"*"}} {
		r := gin.New()
		r.Use(CORSMiddleware(&config.ServerConfig{AllowedOrigins: origins}))
		r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://ocr.example.com", "*.treuhand.ch"}

	assert.True(t, originAllowed(allowed, "https://ocr.example.com"))
	assert.True(t, originAllowed(allowed, "https://portal.treuhand.ch"))
	assert.False(t, originAllowed(allowed, "https://treuhand.ch.evil.com"))
	assert.False(t, originAllowed(allowed, "https://example.com"))
}
