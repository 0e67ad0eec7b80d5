package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/toolrc/internal/shared/id"
)

var (
	// ErrNotInitialized is reported once the context has been torn down
	ErrNotInitialized = errors.New("sandbox not initialized")
	// ErrDestroyed is reported to calls that were waiting when Destroy ran
	ErrDestroyed = errors.New("sandbox destroyed")
)

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records evaluations and readiness on m
func WithMetrics(m *monitoring.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// contextHandle is one running isolated context
type contextHandle struct {
	rt       *Runtime
	inbox    chan Message
	outbox   chan Message
	ready    *readiness
	stopped  chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func (h *contextHandle) terminate() {
	h.stopOnce.Do(func() {
		close(h.stopped)
		h.rt.Interrupt(errTerminated)
	})
}

// Manager owns exactly one isolated context and relays evaluations to it
type Manager struct {
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	handle  *contextHandle
	pending map[string]chan Result
}

// NewManager starts the isolated context. Evaluations issued before it
// signals readiness wait for it.
func NewManager(config Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	return newManager(config, logger, nil, opts...)
}

// newManager holds the context's ready message until gate is closed
func newManager(config Config, logger *zap.Logger, gate <-chan struct{}, opts ...Option) (*Manager, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		config:  config,
		logger:  logger,
		pending: make(map[string]chan Result),
	}
	for _, opt := range opts {
		opt(m)
	}

	rt, err := NewRuntime(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox runtime: %w", err)
	}

	h := &contextHandle{
		rt:      rt,
		inbox:   make(chan Message, config.InboxSize),
		outbox:  make(chan Message),
		ready:   newReadiness(),
		stopped: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	m.handle = h
	m.metrics.SetSandboxReady(false)

	ex := &executor{
		rt:     rt,
		inbox:  h.inbox,
		outbox: h.outbox,
		stop:   h.stopped,
		gate:   gate,
		logger: logger,
	}
	go func() {
		defer close(h.exited)
		ex.run()
	}()
	go m.dispatch(h)

	return m, nil
}

// dispatch routes messages from the context to their waiting callers
func (m *Manager) dispatch(h *contextHandle) {
	for {
		select {
		case msg := <-h.outbox:
			switch msg.Type {
			case MessageReady:
				h.ready.fire()
				m.metrics.SetSandboxReady(true)
				m.logger.Info("Sandbox ready")
			case MessageEvalResult:
				m.resolve(msg)
			default:
				m.logger.Warn("Unexpected message from sandbox", zap.String("type", string(msg.Type)))
			}
		case <-h.exited:
			return
		}
	}
}

func (m *Manager) resolve(msg Message) {
	m.mu.Lock()
	slot, ok := m.pending[msg.ID]
	delete(m.pending, msg.ID)
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("Dropping result for abandoned evaluation", logging.EvalID(msg.ID))
		return
	}
	slot <- msg.result()
}

// Ready reports whether the context has signalled readiness
func (m *Manager) Ready() bool {
	h := m.current()
	return h != nil && h.ready.isSet()
}

// WaitReady blocks until the context is ready
func (m *Manager) WaitReady(ctx context.Context) error {
	h := m.current()
	if h == nil {
		return ErrNotInitialized
	}
	select {
	case <-h.ready.done():
		return nil
	case <-h.stopped:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evaluate compiles code in the isolated context and builds a tool with
// parameters. It never returns an error: every failure is a Result with
// Success false.
func (m *Manager) Evaluate(ctx context.Context, code, parameters string) Result {
	timer := monitoring.NewTimer(m.metrics)
	res, evalID := m.evaluate(ctx, code, parameters)
	d := timer.Stop(res.Success, string(res.Phase))

	if res.Success {
		m.logger.Debug("Evaluation succeeded", logging.EvalID(evalID), zap.Duration("duration", d))
	} else {
		m.logger.Debug("Evaluation failed",
			logging.EvalID(evalID),
			logging.Phase(string(res.Phase)),
			zap.String("error", res.Error),
			zap.Duration("duration", d),
		)
	}
	return res
}

func (m *Manager) evaluate(ctx context.Context, code, parameters string) (Result, string) {
	h := m.current()
	if h == nil {
		return Failed(ErrNotInitialized.Error()), ""
	}

	select {
	case <-h.ready.done():
	case <-h.stopped:
		return Failed(ErrDestroyed.Error()), ""
	case <-ctx.Done():
		return cancelled(ctx), ""
	}

	evalID := id.NewEvalID().String()
	slot := make(chan Result, 1)
	if !m.register(h, evalID, slot) {
		return Failed(ErrDestroyed.Error()), evalID
	}

	msg := Message{Type: MessageEvalTool, ID: evalID, Code: code, Parameters: parameters}
	select {
	case h.inbox <- msg:
	case <-h.stopped:
		return Failed(ErrDestroyed.Error()), evalID
	case <-ctx.Done():
		m.unregister(evalID)
		return cancelled(ctx), evalID
	}

	select {
	case res := <-slot:
		return res, evalID
	case <-h.stopped:
		return Failed(ErrDestroyed.Error()), evalID
	case <-ctx.Done():
		m.unregister(evalID)
		return cancelled(ctx), evalID
	}
}

func cancelled(ctx context.Context) Result {
	return Failed(fmt.Sprintf("evaluation cancelled: %v", ctx.Err()))
}

func (m *Manager) current() *contextHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// register adds a pending slot unless h has been torn down meanwhile
func (m *Manager) register(h *contextHandle, evalID string, slot chan Result) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != h {
		return false
	}
	m.pending[evalID] = slot
	return true
}

func (m *Manager) unregister(evalID string) {
	m.mu.Lock()
	delete(m.pending, evalID)
	m.mu.Unlock()
}

// Pending returns the number of evaluations waiting for a result
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Destroy terminates the context and resolves every waiting call with
// ErrDestroyed. It is safe to call at any time and more than once.
func (m *Manager) Destroy() {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	pending := m.pending
	m.pending = make(map[string]chan Result)
	m.mu.Unlock()

	if h == nil {
		return
	}

	h.terminate()
	for _, slot := range pending {
		slot <- Failed(ErrDestroyed.Error())
	}
	m.metrics.SetSandboxReady(false)
	m.logger.Info("Sandbox destroyed", zap.Int("pending", len(pending)))
}
