package sandbox

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
)

// executor is the loop running inside the isolated context. It reads
// requests from inbox and answers each with exactly one result on outbox.
type executor struct {
	rt     *Runtime
	inbox  <-chan Message
	outbox chan<- Message
	stop   <-chan struct{}
	gate   <-chan struct{}
	logger *zap.Logger
}

func (e *executor) run() {
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-e.stop:
			return
		}
	}

	if !e.post(Message{Type: MessageReady}) {
		return
	}

	for {
		select {
		case <-e.stop:
			return
		case msg := <-e.inbox:
			if !e.post(e.handle(msg)) {
				return
			}
		}
	}
}

func (e *executor) handle(msg Message) (out Message) {
	defer func() {
		if x := recover(); x != nil {
			e.logger.Error("panic during evaluation",
				logging.EvalID(msg.ID),
				zap.Any("panic", x),
				zap.ByteString("stack", debug.Stack()),
			)
			out = resultMessage(msg.ID, Result{
				Error: fmt.Sprintf("internal error: %v", x),
				Phase: PhaseInternal,
			})
		}
	}()

	if msg.Type != MessageEvalTool {
		return resultMessage(msg.ID, Result{Error: "Invalid request type", Phase: PhaseProtocol})
	}
	return resultMessage(msg.ID, e.rt.Evaluate(msg.ID, msg.Code, msg.Parameters))
}

func (e *executor) post(msg Message) bool {
	select {
	case e.outbox <- msg:
		return true
	case <-e.stop:
		return false
	}
}
