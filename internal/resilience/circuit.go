package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker
// is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker is a minimal circuit breaker for a single external service.
// After Threshold consecutive failures it rejects calls until ResetTimeout
// elapses; the next call is then a probe that closes the circuit on success
// or reopens it on failure.
type Breaker struct {
	Threshold    int
	ResetTimeout time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a breaker with the given failure threshold and reset
// timeout.
func NewBreaker(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		nowFunc:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (b *Breaker) WithNow(fn func() time.Time) *Breaker {
	b.nowFunc = fn
	return b
}

// Allow reports whether a call may proceed. Returns ErrCircuitOpen while
// the circuit is open and the reset timeout has not elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.nowFunc().Sub(b.openedAt) >= b.ResetTimeout {
		// Half-open: allow a probe.
		return nil
	}
	return ErrCircuitOpen
}

// Record feeds a call outcome into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.open || b.failures >= b.Threshold {
		b.open = true
		b.openedAt = b.nowFunc()
	}
}

// Open reports whether the circuit is currently open.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.nowFunc().Sub(b.openedAt) < b.ResetTimeout
}
