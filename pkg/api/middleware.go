package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/metrics"
	"github.com/telekom/autofix-notifier/pkg/notification"
	"github.com/telekom/autofix-notifier/pkg/system"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// CorrelationID takes the caller's X-Request-ID, or generates one, and exposes
// it on the gin context, the request context, the response and a request
// scoped logger.
func CorrelationID(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(RequestIDHeader)
		if cid == "" || len(cid) > maxRequestIDLength {
			cid = uuid.NewString()
		}
		c.Set(system.CorrelationIDKey, cid)
		c.Set(system.ReqLoggerKey, log.With("cid", cid))
		c.Request = c.Request.WithContext(notification.WithCorrelationID(c.Request.Context(), cid))
		c.Writer.Header().Set(RequestIDHeader, cid)
		c.Next()
	}
}

// RequestMetrics counts requests by matched route and status code.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
