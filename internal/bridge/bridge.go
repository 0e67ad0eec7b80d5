// Package bridge answers eval-tool-request events from an external caller
// by delegating to a sandbox and emitting a correlated eval-tool-response.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/events"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/toolrc/internal/sandbox"
)

// Event names of the bridge protocol
const (
	EventEvalRequest  = "eval-tool-request"
	EventEvalResponse = "eval-tool-response"
)

const emitTimeout = 10 * time.Second

// Request asks for one evaluation. RequestID is opaque to the bridge.
type Request struct {
	RequestID  string `json:"requestId"`
	Code       string `json:"code"`
	Parameters string `json:"parameters"`
}

// Response answers exactly one Request
type Response struct {
	RequestID string          `json:"requestId"`
	Success   bool            `json:"success"`
	Tool      json.RawMessage `json:"tool,omitempty"`
	Error     string          `json:"error,omitempty"`
	Stack     string          `json:"stack,omitempty"`
}

// Evaluator runs one evaluation; sandbox.Manager implements it
type Evaluator interface {
	Evaluate(ctx context.Context, code, parameters string) sandbox.Result
}

// Option configures a Bridge
type Option func(*Bridge)

// WithMetrics counts handled requests on m
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// Bridge connects an event bus to an Evaluator
type Bridge struct {
	bus     events.Bus
	eval    Evaluator
	logger  *zap.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	off    func()
	closed bool
	wg     sync.WaitGroup
}

// New creates a bridge; call Start to begin handling requests
func New(bus events.Bus, eval Evaluator, logger *zap.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		bus:    bus,
		eval:   eval,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes to eval-tool-request. Calling it twice has no effect.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.off != nil || b.closed {
		return
	}
	b.off = b.bus.On(EventEvalRequest, b.onRequest)
	b.logger.Info("Tool eval bridge started")
}

// Close unsubscribes, cancels in-flight evaluations and waits for their
// handlers to finish
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.off != nil {
		b.off()
	}
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

// onRequest never blocks the bus: each request is handled on its own
// goroutine so overlapping requests proceed independently.
func (b *Bridge) onRequest(_ context.Context, data json.RawMessage) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		b.handle(data)
	}()
}

func (b *Bridge) handle(data json.RawMessage) {
	var req Request
	if err := sonic.Unmarshal(data, &req); err != nil {
		var partial struct {
			RequestID string `json:"requestId"`
		}
		if sonic.Unmarshal(data, &partial) != nil || partial.RequestID == "" {
			b.logger.Warn("Dropping undecodable eval-tool-request", zap.Error(err))
			b.metrics.RecordBridgeRequest("dropped")
			return
		}
		b.metrics.RecordBridgeRequest("invalid")
		b.respond(Response{
			RequestID: partial.RequestID,
			Error:     fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	if req.RequestID == "" {
		b.logger.Warn("Dropping eval-tool-request without requestId")
		b.metrics.RecordBridgeRequest("dropped")
		return
	}

	b.logger.Debug("Received eval-tool-request", logging.RequestID(req.RequestID))

	res := b.evaluate(req)
	resp := Response{RequestID: req.RequestID, Success: res.Success}
	if res.Success {
		resp.Tool = res.Tool
		b.metrics.RecordBridgeRequest("success")
	} else {
		resp.Error = res.Error
		if resp.Error == "" {
			resp.Error = "evaluation failed"
		}
		resp.Stack = res.Stack
		b.metrics.RecordBridgeRequest("failure")
	}
	b.respond(resp)
}

func (b *Bridge) evaluate(req Request) (res sandbox.Result) {
	defer func() {
		if x := recover(); x != nil {
			b.logger.Error("Evaluator panicked",
				logging.RequestID(req.RequestID),
				zap.Any("panic", x),
			)
			res = sandbox.Failed(fmt.Sprint(x))
		}
	}()
	return b.eval.Evaluate(b.ctx, req.Code, req.Parameters)
}

func (b *Bridge) respond(resp Response) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	if err := b.bus.Emit(ctx, EventEvalResponse, resp); err != nil {
		b.logger.Error("Failed to emit eval-tool-response",
			logging.RequestID(resp.RequestID),
			zap.Error(err),
		)
		b.metrics.RecordBridgeRequest("emit_error")
		return
	}
	b.logger.Debug("Sent eval-tool-response",
		logging.RequestID(resp.RequestID),
		zap.Bool("success", resp.Success),
	)
}
