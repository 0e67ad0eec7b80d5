// Package ws serves the /events WebSocket endpoint. Every connection gets
// its own event bridge, so a backend connected here can send
// eval-tool-request events and receive eval-tool-response events.
package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/bridge"
	"github.com/GriffinCanCode/toolrc/internal/events"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/toolrc/internal/shared/id"
)

// Handler manages WebSocket connections
type Handler struct {
	eval     bridge.Evaluator
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[id.ConnID]*events.Conn
	closed bool
	wg     sync.WaitGroup
}

// NewHandler creates a WebSocket handler evaluating through eval.
// metrics and tracer may be nil.
func NewHandler(eval bridge.Evaluator, logger *zap.Logger, metrics *monitoring.Metrics, tracer *tracing.Tracer) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		eval:    eval,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[id.ConnID]*events.Conn),
	}
}

// HandleConnection upgrades the request and serves the bridge protocol
// until the peer hangs up or the handler is closed
func (h *Handler) HandleConnection(c *gin.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "server shutting down",
		})
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connID := id.NewConnID()
	logger := h.logger.With(logging.ConnID(connID.String()))
	span, _ := h.tracer.StartSpan(c.Request.Context(), "ws.session")
	span.SetTag("conn_id", connID.String())

	conn := events.NewConn(ws, logger, events.WithConnMetrics(h.metrics))
	b := bridge.New(conn, h.eval, logger, bridge.WithMetrics(h.metrics))

	if !h.track(connID, conn) {
		_ = conn.Close()
		return
	}
	h.metrics.IncWSConnections()
	b.Start()
	logger.Info("WebSocket connected", zap.String("remote", c.ClientIP()))

	<-conn.Done()

	b.Close()
	_ = conn.Close()
	h.metrics.DecWSConnections()
	h.untrack(connID)
	if err := conn.Err(); err != nil {
		span.SetError(err)
	}
	h.tracer.End(span)
	logger.Info("WebSocket disconnected")
}

func (h *Handler) track(connID id.ConnID, conn *events.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[connID] = conn
	return true
}

func (h *Handler) untrack(connID id.ConnID) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// Connections returns the number of open connections
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and waits for their sessions to end
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	conns := make([]*events.Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	h.wg.Wait()
}
