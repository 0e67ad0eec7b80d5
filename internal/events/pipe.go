package events

import (
	"context"
	"sync"
)

const pipeBuffer = 256

// PipeEnd is one side of an in-process event pipe. Events emitted on one
// end are delivered to handlers registered on the other, in order, from a
// single goroutine per end.
type PipeEnd struct {
	handlers *registry
	inbox    chan Envelope
	peer     *PipeEnd

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPipe returns two connected ends
func NewPipe() (*PipeEnd, *PipeEnd) {
	a, b := newPipeEnd(), newPipeEnd()
	a.peer, b.peer = b, a
	go a.loop()
	go b.loop()
	return a, b
}

func newPipeEnd() *PipeEnd {
	ctx, cancel := context.WithCancel(context.Background())
	return &PipeEnd{
		handlers: newRegistry(),
		inbox:    make(chan Envelope, pipeBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (p *PipeEnd) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case env := <-p.inbox:
			p.handlers.dispatch(p.ctx, env)
		}
	}
}

// On implements Bus
func (p *PipeEnd) On(name string, h Handler) func() {
	return p.handlers.on(name, h)
}

// Emit implements Bus
func (p *PipeEnd) Emit(ctx context.Context, name string, data any) error {
	env, err := encode(name, data)
	if err != nil {
		return err
	}

	select {
	case <-p.ctx.Done():
		return ErrClosed
	case <-p.peer.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case p.peer.inbox <- env:
		return nil
	case <-p.ctx.Done():
		return ErrClosed
	case <-p.peer.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops delivery on both ends
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.peer.cancel()
	})
	return nil
}
