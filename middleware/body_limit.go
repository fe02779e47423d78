package middleware

import (
	"fmt"
	"net/http"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at maxBytes. Declared oversize bodies are
// rejected up front; others fail when the handler reads past the limit.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			_ = c.Error(apperrors.ValidationFailed("file too large",
				fmt.Sprintf("request body of %d bytes exceeds the limit of %d bytes", c.Request.ContentLength, maxBytes)))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
