package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openforum/backend/internal/logger"
	"go.uber.org/zap"
)

// GinLoggerMiddleware logs HTTP requests with structured fields,
// replacing gin.Logger.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := ""
		if v, ok := c.Get("request_id"); ok {
			requestID, _ = v.(string)
		}

		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		clientIP := c.ClientIP()

		c.Next()

		statusCode := c.Writer.Status()
		latency := time.Since(startTime)

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.String("query", query),
			logger.WithIP(clientIP),
			logger.WithStatus(statusCode),
			zap.Duration("latency", latency),
		}
		if requestID != "" {
			fields = append(fields, logger.WithRequestID(requestID))
		}
		if userID := CurrentUserID(c); userID != "" {
			fields = append(fields, logger.WithUserID(userID))
		}

		switch {
		case statusCode >= 500:
			logger.Log.Error("http request", fields...)
		case statusCode >= 400:
			logger.Log.Warn("http request", fields...)
		default:
			logger.Log.Info("http request", fields...)
		}
	}
}
