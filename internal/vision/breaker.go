package vision

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is refusing calls. Jobs that
// hit it fail fast without consuming rate or budget.
var ErrCircuitOpen = errors.New("vision circuit breaker open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker is a circuit breaker over the vision provider. It opens after a
// run of consecutive failures, refuses calls for a cooldown period, then
// admits a single probe. The probe's outcome decides whether the circuit
// closes again or re-opens for another cooldown.
type Breaker struct {
	mu            sync.Mutex
	state         breakerState
	failures      int
	threshold     int
	cooldown      time.Duration
	openedAt      time.Time
	probeInFlight bool
	now           func() time.Time
}

// NewBreaker creates a closed breaker.
// Parameters:
//   - threshold: consecutive failures that open the circuit.
//   - cooldown: how long the circuit stays open before admitting a probe.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed right now. In the half-open
// state only one probe is admitted at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = breakerHalfOpen
		b.probeInFlight = true
		return nil
	default: // half-open
		if b.probeInFlight {
			return ErrCircuitOpen
		}
		b.probeInFlight = true
		return nil
	}
}

// Ready reports whether a call attempt could be admitted right now. Unlike
// Allow it never moves the state machine or claims the half-open probe
// slot, so it is safe as a cheap pre-check before expensive work.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		return b.now().Sub(b.openedAt) >= b.cooldown
	case breakerHalfOpen:
		return !b.probeInFlight
	default:
		return true
	}
}

// Abort releases a claim made by Allow when the attempt is abandoned
// before any request is sent, such as a budget refusal or a canceled
// context. No outcome is recorded; a freed half-open probe slot can be
// claimed by the next caller.
func (b *Breaker) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
}

// Success records a successful call. A successful half-open probe closes
// the circuit and resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInFlight = false
	b.state = breakerClosed
}

// Failure records a failed call. In the closed state it counts toward the
// threshold; a failed half-open probe re-opens the circuit immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.probeInFlight = false
		b.trip()
	case breakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = breakerOpen
	b.failures = 0
	b.openedAt = b.now()
}

// State returns the current state name for logging.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
