// Package store persists discovered site patterns, external-call results,
// and run records.
package store

import (
	"context"
	"time"

	"github.com/sells-group/roster-cli/internal/model"
)

// ExternalCacheEntry memoizes one metered external call, keyed by a stable
// hash of its inputs. An identical key never re-incurs cost within TTL.
type ExternalCacheEntry struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	Result    []byte    `json:"result"`
	CostUSD   float64   `json:"cost_usd"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RunRecord is a persisted summary of one extraction run, read back for
// incremental re-discovery decisions.
type RunRecord struct {
	ID           string         `json:"id"`
	Organization string         `json:"organization"`
	Department   string         `json:"department,omitempty"`
	Stats        model.RunStats `json:"stats"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Store defines persistence for the discovery and extraction pipeline.
// TTL checks happen on read; expired rows behave as misses and are evicted
// lazily. Read/write failures are non-fatal for callers; they degrade to
// "always miss".
type Store interface {
	// Pattern cache. GetPattern returns (nil, nil) on miss or expiry.
	GetPattern(ctx context.Context, orgKey, deptKey string) (*model.SitePattern, error)
	PutPattern(ctx context.Context, orgKey, deptKey string, p *model.SitePattern) error
	InvalidatePattern(ctx context.Context, orgKey, deptKey string) error

	// External call cache. GetExternal returns (nil, nil) on miss or expiry.
	GetExternal(ctx context.Context, key string) (*ExternalCacheEntry, error)
	PutExternal(ctx context.Context, entry *ExternalCacheEntry) error

	// Runs.
	SaveRun(ctx context.Context, run *RunRecord) error
	LastRun(ctx context.Context, organization, department string) (*RunRecord, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
