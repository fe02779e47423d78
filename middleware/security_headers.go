package middleware

import (
	"strings"

	"github.com/NomadCrew/nomad-crew-ocr/config"
	"github.com/gin-gonic/gin"
)

const (
	apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	// The swagger UI loads its own scripts and styles.
	docsContentSecurityPolicy = "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'"
)

// SecurityHeadersMiddleware sets the response hardening headers. API
// responses carry personal and banking data and are marked no-store.
func SecurityHeadersMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")

		if strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
			c.Header("Content-Security-Policy", docsContentSecurityPolicy)
		} else {
			c.Header("Content-Security-Policy", apiContentSecurityPolicy)
			c.Header("Cache-Control", "no-store")
		}

		// HSTS only in production so local http setups keep working.
		if cfg.IsProduction() {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
