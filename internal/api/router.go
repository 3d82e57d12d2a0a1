package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Brownie44l1/cvae-api/internal/handlers"
	"github.com/Brownie44l1/cvae-api/internal/log"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sentryFlushTimeout = 2 * time.Second

func SetupRouter(logger *slog.Logger, handler *handlers.Handler) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: sentryFlushTimeout,
	}))
	router.Use(RequestTracking(logger))
	router.Use(CORS())

	router.GET("/health", handler.Health)
	router.GET("/labels", handler.Labels)
	router.GET("/latent", handler.GetLatent)
	router.PUT("/latent", handler.SetLatent)
	router.POST("/generate", handler.Generate)
	router.GET("/generate/:label", handler.GenerateImage)

	return router
}

// RequestTracking tags each request with an id and carries a request-scoped
// logger in the request context.
func RequestTracking(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Header("X-Request-ID", requestID)

		reqLogger := logger.With("request_id", requestID)
		c.Request = c.Request.WithContext(log.NewContext(c.Request.Context(), reqLogger))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("request failed with server error", attrs...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("request failed with client error", attrs...)
		default:
			reqLogger.Info("request completed", attrs...)
		}
	}
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
