// Package hub is the calling side of the bridge protocol. A Client emits
// eval-tool-request events over a bus and waits for the matching
// eval-tool-response, so a backend can evaluate plugins inside a host it
// does not share memory with.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/toolrc/internal/bridge"
	"github.com/GriffinCanCode/toolrc/internal/events"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/resilience"
)

var (
	ErrEvalTimeout = errors.New("tool evaluation timed out")
	ErrClosed      = errors.New("hub client closed")
)

// EvalError is a failure reported by the host for one evaluation
type EvalError struct {
	Message string
	Stack   string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("tool evaluation failed: %s", e.Message)
}

// Config bounds the client
type Config struct {
	Timeout     time.Duration
	MaxInFlight int64
}

// DefaultConfig returns a 30s timeout and 16 concurrent evaluations
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxInFlight: 16,
	}
}

// Option configures a Client
type Option func(*Client)

// WithMetrics records each call outcome on m
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithBreaker replaces the default circuit breaker
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// Client sends evaluation requests to a host over an event bus
type Client struct {
	bus     events.Bus
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	sem     *semaphore.Weighted
	breaker *resilience.Breaker

	mu      sync.Mutex
	pending map[string]chan bridge.Response
	off     func()
	done    chan struct{}
	closed  bool
}

// New subscribes to eval-tool-response on bus
func New(bus events.Bus, config Config, logger *zap.Logger, opts ...Option) *Client {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = def.MaxInFlight
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		bus:     bus,
		config:  config,
		logger:  logger,
		sem:     semaphore.NewWeighted(config.MaxInFlight),
		pending: make(map[string]chan bridge.Response),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewBreaker(logger)
	}
	c.off = bus.On(bridge.EventEvalResponse, c.onResponse)
	return c
}

// NewBreaker builds the breaker used by default: five consecutive transport
// failures or timeouts open it for 30s. Evaluation failures and caller
// cancellations do not count.
func NewBreaker(logger *zap.Logger) *resilience.Breaker {
	return resilience.New("eval-hub", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var evalErr *EvalError
			return err == nil || errors.As(err, &evalErr) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// EvalTool evaluates code with parameters in the host and returns the tool
// JSON. Failures reported by the host come back as *EvalError.
func (c *Client) EvalTool(ctx context.Context, code, parameters string) (json.RawMessage, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.metrics.RecordHubCall("cancelled")
		return nil, fmt.Errorf("waiting for evaluation slot: %w", err)
	}
	defer c.sem.Release(1)

	tool, err := resilience.Execute(c.breaker, func() (json.RawMessage, error) {
		return c.roundTrip(ctx, code, parameters)
	})
	c.metrics.RecordHubCall(outcome(err))
	return tool, err
}

func (c *Client) roundTrip(ctx context.Context, code, parameters string) (json.RawMessage, error) {
	requestID := uuid.NewString()
	slot := make(chan bridge.Response, 1)
	if !c.register(requestID, slot) {
		return nil, ErrClosed
	}
	defer c.unregister(requestID)

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req := bridge.Request{RequestID: requestID, Code: code, Parameters: parameters}
	if err := c.bus.Emit(callCtx, bridge.EventEvalRequest, req); err != nil {
		return nil, fmt.Errorf("failed to emit eval-tool-request: %w", err)
	}
	c.logger.Debug("Sent eval-tool-request", logging.RequestID(requestID))

	select {
	case resp := <-slot:
		if !resp.Success {
			return nil, &EvalError{Message: resp.Error, Stack: resp.Stack}
		}
		return resp.Tool, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.logger.Warn("Tool evaluation timed out",
			logging.RequestID(requestID),
			zap.Duration("timeout", c.config.Timeout),
		)
		return nil, fmt.Errorf("%w after %s", ErrEvalTimeout, c.config.Timeout)
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) onResponse(_ context.Context, data json.RawMessage) {
	var resp bridge.Response
	if err := sonic.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("Dropping undecodable eval-tool-response", zap.Error(err))
		return
	}

	c.mu.Lock()
	slot, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Dropping eval-tool-response for unknown request",
			logging.RequestID(resp.RequestID),
		)
		return
	}
	slot <- resp
}

func (c *Client) register(requestID string, slot chan bridge.Response) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.pending[requestID] = slot
	return true
}

func (c *Client) unregister(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

// Pending reports the number of requests awaiting a response
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close unsubscribes and fails every pending call with ErrClosed
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.off()
	close(c.done)
}

func outcome(err error) string {
	var evalErr *EvalError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &evalErr):
		return "eval_failure"
	case errors.Is(err, ErrEvalTimeout):
		return "timeout"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
