package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		// Route templates keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(method, path, strconv.Itoa(c.Writer.Status()), time.Since(start), reqSize, int64(c.Writer.Size()))
	}
}

// Timer measures evaluation duration
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer and marks one evaluation in flight
func NewTimer(metrics *Metrics) *Timer {
	metrics.IncEvalsInFlight()
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
	}
}

// Stop records the duration and outcome of the timed evaluation
func (t *Timer) Stop(success bool, phase string) time.Duration {
	d := time.Since(t.start)
	t.metrics.DecEvalsInFlight()
	t.metrics.RecordEvaluation(success, phase, d)
	return d
}
