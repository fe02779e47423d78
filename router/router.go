package router

import (
	"net/http"
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/config"
	_ "github.com/NomadCrew/nomad-crew-ocr/docs"
	"github.com/NomadCrew/nomad-crew-ocr/handlers"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/middleware"
	"github.com/NomadCrew/nomad-crew-ocr/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config          *config.Config
	DocumentHandler *handlers.DocumentHandler
	HealthHandler   *handlers.HealthHandler
	RateLimiter     services.RateLimiterInterface
	Gatherer        prometheus.Gatherer
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if !deps.Config.IsProduction() {
		r.Use(gin.Logger())
	}

	if err := r.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		logger.GetLogger().Warnw("Invalid trusted proxy list, ignoring forwarded headers",
			"proxies", deps.Config.Server.TrustedProxies, "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	// Global Middleware
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.SecurityHeadersMiddleware(deps.Config))
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))
	r.Use(middleware.ErrorHandler())

	// Health and discovery routes are public
	r.GET("/health", deps.HealthHandler.HealthCheck)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/supported-languages", deps.DocumentHandler.SupportedLanguagesHandler)
	r.GET("/document-types", deps.DocumentHandler.DocumentTypesHandler)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	window := time.Duration(deps.Config.RateLimit.WindowSeconds) * time.Second
	process := r.Group("/process")
	process.Use(
		middleware.APIKeyAuth(deps.Config.Server.APIKey),
		middleware.RateLimiter(deps.RateLimiter, "process", deps.Config.RateLimit.MaxRequests, window),
		middleware.BodyLimit(deps.Config.Server.MaxUploadBytes+multipartOverhead),
	)
	process.POST("", deps.DocumentHandler.ProcessDocumentHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{
			Type:    "NOT_FOUND",
			Message: "route not found",
			Code:    "404",
		})
	})

	return r
}

// multipartOverhead leaves room for form boundaries around the largest accepted file.
const multipartOverhead = 1 << 20
