package httptransport

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceHeader carries the per-request correlation id in both directions.
const TraceHeader = "X-Trace-Id"

const traceKey = "trace_id"

var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// traceMiddleware assigns every request a trace id, reusing a well-formed
// inbound X-Trace-Id.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if !traceIDPattern.MatchString(traceID) {
			traceID = uuid.NewString()
		}
		c.Set(traceKey, traceID)
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}

// TraceID returns the request's trace id, minting one when the middleware
// did not run.
func TraceID(c *gin.Context) string {
	if v, ok := c.Get(traceKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	traceID := uuid.NewString()
	c.Set(traceKey, traceID)
	c.Header(TraceHeader, traceID)
	return traceID
}
