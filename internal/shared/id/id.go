// Package id provides ULID-based identifiers for evaluations, requests and
// event connections.
//
// IDs are lexicographically sortable and carry a type prefix so they read
// well in logs (eval_*, req_*, conn_*, span_*). Every helper that takes an
// id accepts it with or without the prefix.
package id

import (
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EvalID correlates one sandbox evaluation with its result
type EvalID string

// RequestID identifies an API request
type RequestID string

// ConnID identifies an event connection
type ConnID string

const (
	EvalPrefix    = "eval"
	RequestPrefix = "req"
	ConnPrefix    = "conn"

	separator = "_"
)

var ErrInvalid = errors.New("invalid id")

// Generator hands out monotonic ULIDs; it is safe for concurrent use
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var defaultGenerator = sync.OnceValue(NewGenerator)

// Default returns the process-wide generator
func Default() *Generator {
	return defaultGenerator()
}

// NewGenerator creates a generator seeded from crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0), time.Now)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
// and clock, for deterministic ids in tests
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates "<prefix>_<ulid>"
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + separator + g.Generate().String()
}

// NewEvalID generates a new evaluation correlation ID
func NewEvalID() EvalID {
	return EvalID(Default().GenerateWithPrefix(EvalPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewConnID generates a new connection ID
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

func (id EvalID) String() string    { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id ConnID) String() string    { return string(id) }

// Split separates an id into its prefix and ULID. The prefix is empty for
// a bare ULID.
func Split(id string) (string, ulid.ULID, error) {
	prefix, raw := "", id
	if i := strings.LastIndex(id, separator); i >= 0 {
		prefix, raw = id[:i], id[i+1:]
	}
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return "", ulid.ULID{}, errors.Join(ErrInvalid, err)
	}
	return prefix, parsed, nil
}

// IsValid reports whether id is a ULID, optionally prefixed
func IsValid(id string) bool {
	_, _, err := Split(id)
	return err == nil
}

// HasPrefix reports whether id is valid and carries prefix
func HasPrefix(id, prefix string) bool {
	p, _, err := Split(id)
	return err == nil && p == prefix
}

// Timestamp extracts the creation time of an id
func Timestamp(id string) (time.Time, error) {
	_, parsed, err := Split(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
