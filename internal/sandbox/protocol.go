package sandbox

import (
	"encoding/json"
)

// MessageType discriminates messages exchanged with the isolated context
type MessageType string

const (
	MessageEvalTool   MessageType = "eval-tool"
	MessageEvalResult MessageType = "eval-tool-result"
	MessageReady      MessageType = "ready"
)

// Phase names the pipeline stage an evaluation failed in
type Phase string

const (
	PhaseProtocol   Phase = "protocol"
	PhaseCompile    Phase = "compile"
	PhaseContract   Phase = "contract"
	PhaseParameters Phase = "parameters"
	PhaseConstruct  Phase = "construct"
	PhaseSerialize  Phase = "serialize"
	PhaseTimeout    Phase = "timeout"
	PhaseInternal   Phase = "internal"
)

// Message is the only thing that crosses the isolation boundary
type Message struct {
	Type       MessageType     `json:"type"`
	ID         string          `json:"id,omitempty"`
	Code       string          `json:"code,omitempty"`
	Parameters string          `json:"parameters,omitempty"`
	Success    bool            `json:"success"`
	Tool       json.RawMessage `json:"tool,omitempty"`
	Error      string          `json:"error,omitempty"`
	Stack      string          `json:"stack,omitempty"`
	Phase      Phase           `json:"phase,omitempty"`
	Console    []LogEntry      `json:"console,omitempty"`
}

// Result is the outcome of one evaluation. Tool is set iff Success.
type Result struct {
	Success bool            `json:"success"`
	Tool    json.RawMessage `json:"tool,omitempty"`
	Error   string          `json:"error,omitempty"`
	Stack   string          `json:"stack,omitempty"`
	Phase   Phase           `json:"phase,omitempty"`
	Console []LogEntry      `json:"console,omitempty"`
}

// Failed builds an unsuccessful result carrying only a message
func Failed(msg string) Result {
	return Result{Success: false, Error: msg}
}

func resultMessage(id string, r Result) Message {
	return Message{
		Type:    MessageEvalResult,
		ID:      id,
		Success: r.Success,
		Tool:    r.Tool,
		Error:   r.Error,
		Stack:   r.Stack,
		Phase:   r.Phase,
		Console: r.Console,
	}
}

func (m Message) result() Result {
	return Result{
		Success: m.Success,
		Tool:    m.Tool,
		Error:   m.Error,
		Stack:   m.Stack,
		Phase:   m.Phase,
		Console: m.Console,
	}
}
