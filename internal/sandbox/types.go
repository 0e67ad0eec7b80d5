package sandbox

import (
	"time"
)

// Config defines sandbox configuration
type Config struct {
	EvalTimeout   time.Duration // Deadline for one evaluation, enforced by interrupting the runtime
	MaxCallStack  int           // Maximum JS call depth
	EnableConsole bool          // Capture console.log/warn/error/info
	InboxSize     int           // Buffered requests waiting for the context
}

// DefaultConfig returns the configuration used when none is supplied
func DefaultConfig() Config {
	return Config{
		EvalTimeout:   30 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
		InboxSize:     64,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = def.EvalTimeout
	}
	if c.MaxCallStack <= 0 {
		c.MaxCallStack = def.MaxCallStack
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
	return c
}

// LogEntry represents console output produced by a plugin
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
