package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func accessLog(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       routeLabel(c),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request processed")
		}
	}
}

func (s *Server) withTracing() gin.HandlerFunc {
	propagator := otel.GetTextMapPropagator()
	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := routeLabel(c)
		ctx, span := s.tracer.Start(ctx, c.Request.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", c.Request.URL.Path),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// limitBody caps request bodies so an oversized upload fails while the
// multipart form is parsed instead of after it is buffered.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			// Multipart framing adds a little on top of the file itself.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+64<<10)
		}
		c.Next()
	}
}

func (s *Server) withRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		subject := strings.TrimSpace(c.GetHeader(s.limitCfg.SubjectHeader))
		if subject == "" {
			subject = c.ClientIP()
		}

		decision, err := s.limiter.Allow(c.Request.Context(), subject, requestCost(c))
		if err != nil {
			s.logger.WithField("subject", subject).WithError(err).Warn("rate limiter check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.FormatInt(max(1, decision.RetryAfterSeconds()), 10))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(c)).Inc()
		if strings.HasPrefix(c.Request.URL.Path, "/v1/") {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
}

// requestCost charges icon-set generation for the fifteen images it renders.
func requestCost(c *gin.Context) int {
	switch c.FullPath() {
	case "/generate_icon_set", "/v1/icon-sets":
		return 5
	default:
		return 1
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
