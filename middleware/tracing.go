package middleware

import (
	"time"

	"docchat-backend/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware provides OpenTelemetry tracing for Gin.
func TracingMiddleware() gin.HandlerFunc {
	return otelgin.Middleware("docchat-backend")
}

// EnrichTrace adds request and response attributes to the active span.
func EnrichTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		span.SetAttributes(
			attribute.String("http.client_ip", c.ClientIP()),
			attribute.String("request.id", GetRequestID(c)),
		)

		c.Next()

		span.SetAttributes(
			attribute.Int("http.response.status_code", c.Writer.Status()),
		)
	}
}

// MetricsMiddleware records request count and duration per route.
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusStr := "success"
		if c.Writer.Status() >= 400 {
			statusStr = "error"
		}
		metrics.RecordRequest(c.Request.Context(), c.Request.Method, c.FullPath(), statusStr, time.Since(start).Seconds())
	}
}
