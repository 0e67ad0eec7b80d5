package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Input size limits (in bytes)
const (
	MaxCodeSize       = 1 * 1024 * 1024 // plugin source
	MaxParametersSize = 256 * 1024      // parameter JSON text
	MaxToolNameLength = 256

	// MaxEvalBodySize bounds an evaluation request body. JSON escaping can
	// double the code and parameters, plus room for the envelope.
	MaxEvalBodySize = 2*(MaxCodeSize+MaxParametersSize) + 64*1024
)

var (
	ErrTooLarge    = errors.New("input too large")
	ErrInvalidText = errors.New("invalid input")
)

// ToolNamePattern allows slash-separated segments of alphanumerics, dots,
// hyphens and underscores
var ToolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+(/[a-zA-Z0-9._-]+)*$`)

// ValidateSize checks that value fits in max bytes
func ValidateSize(value, fieldName string, max int) error {
	if len(value) > max {
		return fmt.Errorf("%w: %s is %d bytes, maximum %d", ErrTooLarge, fieldName, len(value), max)
	}
	return nil
}

// ValidateEvalInput bounds the code and parameters of one evaluation
func ValidateEvalInput(code, parameters string) error {
	if err := ValidateSize(code, "code", MaxCodeSize); err != nil {
		return err
	}
	if err := ValidateSize(parameters, "parameters", MaxParametersSize); err != nil {
		return err
	}
	// Check for null bytes
	if strings.ContainsRune(code, 0) {
		return fmt.Errorf("%w: code contains a null byte", ErrInvalidText)
	}
	return nil
}

// ValidateToolName rejects names that could not be routed or that escape
// the tools directory
func ValidateToolName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: tool name is required", ErrInvalidText)
	}
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("%w: tool name must not exceed %d characters", ErrInvalidText, MaxToolNameLength)
	}
	if !ToolNamePattern.MatchString(name) {
		return fmt.Errorf("%w: tool name %q contains invalid characters", ErrInvalidText, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: tool name %q contains a relative segment", ErrInvalidText, name)
		}
	}
	return nil
}
