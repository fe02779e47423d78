package middleware

import (
	"crypto/subtle"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth requires the shared secret in the X-API-Key header. An empty
// key disables the check.
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(apiKeyHeader)
		if provided == "" {
			_ = c.Error(apperrors.AuthenticationFailed("missing API key"))
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			_ = c.Error(apperrors.AuthenticationFailed("invalid API key"))
			c.Abort()
			return
		}

		c.Set(APIClientKey, logger.MaskAPIKey(provided))
		c.Next()
	}
}
