package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/handler"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
	"gigmarket/pkg/trace"
	"gigmarket/pkg/util"
)

// TraceMiddleware propagates X-Trace-ID, generating one when absent.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	}
}

// AccessLogMiddleware logs each request and records its latency.
func AccessLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(status), elapsed)

		logger.WithTrace(c.Request.Context(), log).Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
		)
	}
}

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			unauthenticated(c, "missing token")
			return
		}

		userID, role, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			unauthenticated(c, "invalid token")
			return
		}

		handler.SetPrincipal(c, userID, role)
		c.Next()
	}
}

func unauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "kind": apperror.KindUnauthenticated})
}
