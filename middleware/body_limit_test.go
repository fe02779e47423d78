package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(limit int64) *gin.Engine {
		router := gin.New()
		router.Use(ErrorHandler())
		router.Use(BodyLimit(limit))
		router.POST("/process", func(c *gin.Context) {
			if _, err := io.ReadAll(c.Request.Body); err != nil {
				c.String(http.StatusRequestEntityTooLarge, "too large")
				return
			}
			c.String(http.StatusOK, "OK")
		})
		return router
	}

	t.Run("under the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", bytes.NewReader(make([]byte, 10)))
		newRouter(16).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("declared length over the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", bytes.NewReader(make([]byte, 32)))
		newRouter(16).ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file too large")
	})

	t.Run("undeclared length over the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", io.NopCloser(bytes.NewReader(make([]byte, 32))))
		req.ContentLength = -1
		newRouter(16).ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("zero disables the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/process", bytes.NewReader(make([]byte, 64)))
		newRouter(0).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
