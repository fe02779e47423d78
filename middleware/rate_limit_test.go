package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRateLimiter struct {
	mock.Mock
}

func (m *mockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (services.RateLimitDecision, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Get(0).(services.RateLimitDecision), args.Error(1)
}

func newRateLimitedRouter(limiter services.RateLimiterInterface, limit int) *gin.Engine {
	router := gin.New()
	router.Use(ErrorHandler())
	router.Use(RateLimiter(limiter, "process", limit, time.Minute))
	router.POST("/process", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return router
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := new(mockRateLimiter)
		limiter.On("Allow", mock.Anything, "process:192.168.1.1", 5, time.Minute).
			Return(services.RateLimitDecision{Allowed: true, Count: 1, Remaining: 4, ResetIn: 50 * time.Second}, nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		newRateLimitedRouter(limiter, 5).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
		assert.Empty(t, w.Header().Get("Retry-After"))
		limiter.AssertExpectations(t)
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := new(mockRateLimiter)
		limiter.On("Allow", mock.Anything, "process:192.168.1.2", 3, time.Minute).
			Return(services.RateLimitDecision{Allowed: false, Count: 4, Remaining: 0, ResetIn: 12 * time.Second}, nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", nil)
		req.RemoteAddr = "192.168.1.2:1234"
		newRateLimitedRouter(limiter, 3).ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "12", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("ignores X-Forwarded-For from untrusted clients", func(t *testing.T) {
		limiter := new(mockRateLimiter)
		limiter.On("Allow", mock.Anything, "process:192.168.1.3", 3, time.Minute).
			Return(services.RateLimitDecision{Allowed: true, Count: 1, Remaining: 2, ResetIn: time.Minute}, nil)

		router := newRateLimitedRouter(limiter, 3)
		_ = router.SetTrustedProxies(nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", nil)
		req.RemoteAddr = "192.168.1.3:1234"
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		limiter.AssertExpectations(t)
	})

	t.Run("fails open when the backend is down", func(t *testing.T) {
		limiter := new(mockRateLimiter)
		limiter.On("Allow", mock.Anything, mock.Anything, 5, time.Minute).
			Return(services.RateLimitDecision{}, errors.New("connection refused"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", nil)
		req.RemoteAddr = "192.168.1.4:1234"
		newRateLimitedRouter(limiter, 5).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("zero limit disables the check", func(t *testing.T) {
		limiter := new(mockRateLimiter)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", nil)
		newRateLimitedRouter(limiter, 0).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reset header is in the future", func(t *testing.T) {
		limiter := new(mockRateLimiter)
		limiter.On("Allow", mock.Anything, mock.Anything, 5, time.Minute).
			Return(services.RateLimitDecision{Allowed: true, Remaining: 4}, nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", nil)
		req.RemoteAddr = "192.168.1.5:1234"
		newRateLimitedRouter(limiter, 5).ServeHTTP(w, req)

		reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
		assert.NoError(t, err)
		assert.Greater(t, reset, time.Now().Unix())
	})
}
