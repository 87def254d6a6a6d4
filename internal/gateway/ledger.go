package gateway

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
)

// ErrQuotaExceeded is returned by Reserve when the per-run call or cost
// ceiling has been reached. The gateway converts it to an unavailable
// result; it is never surfaced to pipeline callers.
var ErrQuotaExceeded = eris.New("gateway: per-run quota exceeded")

// Ledger is the single source of truth for a run's external spend. One
// ledger is created per run and passed into the gateway, so tests can
// inject a fresh counter for isolation. Reserve is check-and-increment
// under one lock to prevent budget overrun when stages run concurrently.
type Ledger struct {
	maxCalls   int
	maxCostUSD float64

	mu      sync.Mutex
	live    int
	cached  int
	costUSD float64
}

// NewLedger creates a ledger with the given per-run ceilings. Zero values
// disable the corresponding limit.
func NewLedger(maxCalls int, maxCostUSD float64) *Ledger {
	return &Ledger{maxCalls: maxCalls, maxCostUSD: maxCostUSD}
}

// Reserve atomically claims one live call slot. Returns ErrQuotaExceeded
// when either ceiling has been reached.
func (l *Ledger) Reserve() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxCalls > 0 && l.live >= l.maxCalls {
		return ErrQuotaExceeded
	}
	if l.maxCostUSD > 0 && l.costUSD >= l.maxCostUSD {
		return ErrQuotaExceeded
	}
	l.live++
	return nil
}

// RecordCost adds the actual cost of a completed live call.
func (l *Ledger) RecordCost(usd float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.costUSD += usd
}

// RecordCached counts a cache hit served at zero cost.
func (l *Ledger) RecordCached() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached++
}

// Summary returns a snapshot for the health/cost accessor.
func (l *Ledger) Summary() model.CostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return model.CostSummary{
		TotalExternalCost: l.costUSD,
		CachedCallCount:   l.cached,
		LiveCallCount:     l.live,
	}
}
