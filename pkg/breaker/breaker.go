package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Execute when the circuit is open (or half-open and
// already has a probe call in flight) and the call is rejected without
// being attempted.
var ErrOpen = errors.New("breaker: circuit open, backend unavailable")

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker guards calls to the backend. After failureThreshold consecutive
// failures it opens for openDuration, then allows one probe call through in
// half-open state: success closes it, failure reopens it. A 4xx response is
// not counted as a failure — it indicates a bad request, not a struggling
// backend.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	openDuration     time.Duration

	state           State
	failureCount    int
	lastFailureTime time.Time
	halfOpenInFlight bool

	// Disabled, when true, makes Execute always attempt the call — used to
	// turn the breaker off entirely via config while still exposing
	// Observe() so failure counting (and the exported state) stays
	// meaningful for operators who want visibility without enforcement.
	Disabled bool
}

// New creates a Breaker with the given threshold and open-state duration.
func New(failureThreshold int, openDuration time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if openDuration <= 0 {
		openDuration = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		openDuration:     openDuration,
		state:            Closed,
	}
}

// Allow reports whether a call may proceed right now, transitioning
// open->half-open if the cooldown has elapsed. It must be paired with a
// later call to Observe with the outcome.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Disabled {
		return true
	}

	switch b.state {
	case Open:
		if time.Since(b.lastFailureTime) >= b.openDuration {
			b.state = HalfOpen
			b.halfOpenInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default:
		return true
	}
}

// Observe records the outcome of a call previously allowed by Allow.
// isFailure should be false for 4xx-class errors — they reflect a bad
// request, not backend unavailability, and must not count toward opening
// the circuit.
func (b *Breaker) Observe(isFailure bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.halfOpenInFlight = false
	}

	if !isFailure {
		b.failureCount = 0
		b.state = Closed
		return
	}

	b.failureCount++
	b.lastFailureTime = time.Now()

	if b.state == HalfOpen || b.failureCount >= b.failureThreshold {
		b.state = Open
	}
}

// Execute runs fn under circuit breaker protection. failureClassifier
// decides whether a non-nil error returned by fn should count as a circuit
// failure (network/5xx/timeout) or be passed through without affecting the
// circuit's state (4xx).
func (b *Breaker) Execute(ctx context.Context, failureClassifier func(error) bool, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}

	err := fn(ctx)

	isFailure := err != nil
	if err != nil && failureClassifier != nil {
		isFailure = failureClassifier(err)
	}
	b.Observe(isFailure)

	return err
}

// State returns the current circuit state, for the /health endpoint and
// metrics export.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure count, for the
// /health endpoint. Reset to zero on every success.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
