package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxRequests bounds probes in half-open state; that many consecutive
	// successes close the breaker again. Default 1.
	MaxRequests uint32
	// Interval clears counts periodically while closed. Default 60s.
	Interval time.Duration
	// Timeout is how long the breaker stays open. Default 60s.
	Timeout time.Duration
	// ReadyToTrip decides, after a failure while closed, whether to open.
	// Default: more than five consecutive failures.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange is called after every transition, outside the lock
	OnStateChange func(name string, from State, to State)
	// IsSuccessful classifies a request error. Errors it accepts count as
	// successes, so failures of the caller's own making do not trip the
	// breaker. Defaults to err == nil.
	IsSuccessful func(err error) bool
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Interval <= 0 {
		s.Interval = 60 * time.Second
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	if s.ReadyToTrip == nil {
		s.ReadyToTrip = func(counts Counts) bool { return counts.ConsecutiveFailures > 5 }
	}
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool { return err == nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// Counts holds the statistics of the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) record(success bool) {
	if success {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		return
	}
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

type transition struct {
	from, to State
}

// Breaker implements the circuit breaker pattern. Every state change and
// every closed-interval rollover starts a new generation; results of
// requests admitted in an earlier generation are ignored.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	deadline   time.Time // end of the closed interval or of the open period
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	settings = settings.withDefaults()
	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		deadline: settings.Now().Add(settings.Interval),
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	changes := b.advance(b.settings.Now())
	state := b.state
	b.mu.Unlock()

	b.notify(changes)
	return state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs req if the breaker accepts it
func (b *Breaker) Do(req func() error) error {
	_, err := Execute(b, func() (struct{}, error) {
		return struct{}{}, req()
	})
	return err
}

// Execute runs req through b and returns its result. When the breaker
// rejects the call req is not run and the error is ErrCircuitOpen or
// ErrTooManyRequests. A panic in req counts as a failure and is re-raised.
func Execute[T any](b *Breaker, req func() (T, error)) (T, error) {
	var zero T

	generation, err := b.admit()
	if err != nil {
		return zero, err
	}

	done := false
	defer func() {
		if !done {
			b.complete(generation, false)
		}
	}()

	result, err := req()
	done = true
	b.complete(generation, b.settings.IsSuccessful(err))
	return result, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	changes := b.advance(b.settings.Now())

	var err error
	switch {
	case b.state == StateOpen:
		err = ErrCircuitOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		err = ErrTooManyRequests
	default:
		b.counts.Requests++
	}
	generation := b.generation
	b.mu.Unlock()

	b.notify(changes)
	return generation, err
}

func (b *Breaker) complete(generation uint64, success bool) {
	b.mu.Lock()
	now := b.settings.Now()
	changes := b.advance(now)

	if generation == b.generation {
		b.counts.record(success)
		switch {
		case b.state == StateHalfOpen && !success:
			changes = append(changes, b.enter(StateOpen, now))
		case b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests:
			changes = append(changes, b.enter(StateClosed, now))
		case b.state == StateClosed && !success && b.settings.ReadyToTrip(b.counts):
			changes = append(changes, b.enter(StateOpen, now))
		}
	}
	b.mu.Unlock()

	b.notify(changes)
}

// advance applies time-driven changes: the open period ending and the
// closed interval rolling over. Callers hold mu.
func (b *Breaker) advance(now time.Time) []transition {
	switch b.state {
	case StateOpen:
		if !now.Before(b.deadline) {
			return []transition{b.enter(StateHalfOpen, now)}
		}
	case StateClosed:
		if !now.Before(b.deadline) {
			b.generation++
			b.counts = Counts{}
			b.deadline = now.Add(b.settings.Interval)
		}
	}
	return nil
}

// enter switches to state and starts a new generation. Callers hold mu.
func (b *Breaker) enter(state State, now time.Time) transition {
	t := transition{from: b.state, to: state}
	b.state = state
	b.generation++
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.deadline = now.Add(b.settings.Interval)
	case StateOpen:
		b.deadline = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.deadline = time.Time{}
	}
	return t
}

func (b *Breaker) notify(changes []transition) {
	if b.settings.OnStateChange == nil {
		return
	}
	for _, t := range changes {
		b.settings.OnStateChange(b.name, t.from, t.to)
	}
}
