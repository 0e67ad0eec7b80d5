package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 20
)

// ConnOption configures a Conn
type ConnOption func(*Conn)

// WithConnMetrics counts messages in each direction on m
func WithConnMetrics(m *monitoring.Metrics) ConnOption {
	return func(c *Conn) {
		c.metrics = m
	}
}

// Conn is a Bus over a WebSocket connection
type Conn struct {
	ws       *websocket.Conn
	handlers *registry
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	writeMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
	err       error
}

// NewConn starts reading envelopes from ws. Handlers registered with On
// run on the read goroutine.
func NewConn(ws *websocket.Conn, logger *zap.Logger, opts ...ConnOption) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:       ws,
		handlers: newRegistry(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	ws.SetReadLimit(maxMessageSize)
	go c.readLoop()
	return c
}

// Dial opens a client connection to url
func Dial(ctx context.Context, url string, logger *zap.Logger, opts ...ConnOption) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewConn(ws, logger, opts...), nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer c.cancel()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("WebSocket read ended", zap.Error(err))
				c.err = err
			}
			return
		}

		var env Envelope
		if err := sonic.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.logger.Warn("Dropping malformed envelope", zap.Int("bytes", len(data)), zap.Error(err))
			continue
		}
		c.metrics.RecordWSMessage("in", env.Event)

		if !c.handlers.dispatch(c.ctx, env) {
			c.logger.Debug("No handler for event", zap.String("event", env.Event))
		}
	}
}

// On implements Bus
func (c *Conn) On(name string, h Handler) func() {
	return c.handlers.on(name, h)
}

// Emit implements Bus
func (c *Conn) Emit(ctx context.Context, name string, data any) error {
	env, err := encode(name, data)
	if err != nil {
		return err
	}
	payload, err := sonic.ConfigStd.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	c.metrics.RecordWSMessage("out", name)
	return nil
}

// Done is closed when the peer hangs up or Close is called
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the read loop, if any
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Close sends a close frame and releases the connection
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
