package discovery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/store"
)

type fakeStrategy struct {
	name     model.DiscoveryMethod
	pattern  *model.SitePattern
	err      error
	attempts int
}

func (f *fakeStrategy) Name() model.DiscoveryMethod { return f.name }

func (f *fakeStrategy) Attempt(_ context.Context, _ Input) (*model.SitePattern, error) {
	f.attempts++
	return f.pattern, f.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChainConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{ConfidenceFloor: 0.5, PatternTTLDays: 30}
}

func TestDiscoverFirstStrategyAboveFloorWins(t *testing.T) {
	first := &fakeStrategy{
		name:    model.MethodSitemap,
		pattern: &model.SitePattern{BaseURL: "https://www.example.edu", DirectoryPaths: []string{"/faculty"}, Confidence: 0.85},
	}
	second := &fakeStrategy{name: model.MethodNavigation}

	chain := NewChain(newTestStore(t), nil, testChainConfig(), first, second)
	p, err := chain.Discover(context.Background(), "Example University", "https://www.example.edu", "")
	require.NoError(t, err)

	assert.Equal(t, model.MethodSitemap, p.Method)
	assert.Equal(t, "example-university", p.OrgKey)
	assert.InDelta(t, 0.85, p.Confidence, 1e-9)
	assert.False(t, p.LowConfidence)
	assert.Equal(t, 1, first.attempts)
	assert.Equal(t, 0, second.attempts, "chain should stop at the first hit")
}

func TestDiscoverFallsThroughNilAndErrors(t *testing.T) {
	failing := &fakeStrategy{name: model.MethodSitemap, err: assert.AnError}
	empty := &fakeStrategy{name: model.MethodNavigation}
	last := &fakeStrategy{
		name:    model.MethodCommonPath,
		pattern: &model.SitePattern{DirectoryPaths: []string{"/staff"}, Confidence: 0.6},
	}

	chain := NewChain(newTestStore(t), nil, testChainConfig(), failing, empty, last)
	p, err := chain.Discover(context.Background(), "Example University", "https://www.example.edu", "")
	require.NoError(t, err)

	assert.Equal(t, model.MethodCommonPath, p.Method)
	assert.Equal(t, 1, failing.attempts)
	assert.Equal(t, 1, empty.attempts)
}

func TestDiscoverSecondCallServedFromCache(t *testing.T) {
	strat := &fakeStrategy{
		name:    model.MethodSitemap,
		pattern: &model.SitePattern{DirectoryPaths: []string{"/faculty"}, Confidence: 0.85},
	}

	chain := NewChain(newTestStore(t), nil, testChainConfig(), strat)
	ctx := context.Background()

	first, err := chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)
	second, err := chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)

	assert.Equal(t, 1, strat.attempts, "second discover must hit the cache")
	assert.Equal(t, first.DirectoryPaths, second.DirectoryPaths)
	assert.Equal(t, first.Method, second.Method)
}

func TestDiscoverDepartmentScopedCaching(t *testing.T) {
	strat := &fakeStrategy{
		name:    model.MethodSubdomain,
		pattern: &model.SitePattern{DirectoryPaths: []string{"/people"}, Confidence: 0.75},
	}

	chain := NewChain(newTestStore(t), nil, testChainConfig(), strat)
	ctx := context.Background()

	_, err := chain.Discover(ctx, "Example University", "https://www.example.edu", "Computer Science")
	require.NoError(t, err)
	_, err = chain.Discover(ctx, "Example University", "https://www.example.edu", "Biology")
	require.NoError(t, err)

	assert.Equal(t, 2, strat.attempts, "different departments are separate cache entries")
}

func TestDiscoverSubFloorCandidateReturnedNotCached(t *testing.T) {
	strat := &fakeStrategy{
		name:    model.MethodCommonPath,
		pattern: &model.SitePattern{DirectoryPaths: []string{"/staff"}, Confidence: 0.3},
	}

	chain := NewChain(newTestStore(t), nil, testChainConfig(), strat)
	ctx := context.Background()

	p, err := chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)
	assert.True(t, p.LowConfidence)
	assert.Equal(t, model.MethodCommonPath, p.Method)
	assert.NotEmpty(t, p.DirectoryPaths)

	// Sub-floor patterns are not cached, so the next run retries.
	_, err = chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)
	assert.Equal(t, 2, strat.attempts)
}

func TestDiscoverTotalFailureYieldsEmptyLowConfidencePattern(t *testing.T) {
	// Every structural strategy strikes out and no assistant is wired in.
	chain := NewChain(newTestStore(t), nil, testChainConfig(),
		&fakeStrategy{name: model.MethodSitemap},
		&fakeStrategy{name: model.MethodNavigation},
		&fakeStrategy{name: model.MethodCommonPath},
	)

	p, err := chain.Discover(context.Background(), "Example University", "https://www.example.edu", "")
	require.NoError(t, err, "discovery exhaustion is not an error")
	require.NotNil(t, p)
	assert.True(t, p.LowConfidence)
	assert.Equal(t, model.MethodNone, p.Method)
	assert.Empty(t, p.DirectoryPaths)
	assert.Zero(t, p.Confidence)
}

func TestInvalidateForcesRediscovery(t *testing.T) {
	strat := &fakeStrategy{
		name:    model.MethodSitemap,
		pattern: &model.SitePattern{DirectoryPaths: []string{"/faculty"}, Confidence: 0.85},
	}

	chain := NewChain(newTestStore(t), nil, testChainConfig(), strat)
	ctx := context.Background()

	_, err := chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)
	chain.Invalidate(ctx, "Example University", "")
	_, err = chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)

	assert.Equal(t, 2, strat.attempts)
}

func TestDiscoverExpiredCacheEntryRetries(t *testing.T) {
	strat := &fakeStrategy{
		name:    model.MethodSitemap,
		pattern: &model.SitePattern{DirectoryPaths: []string{"/faculty"}, Confidence: 0.85},
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.WithNow(func() time.Time { return now })

	chain := NewChain(st, nil, testChainConfig(), strat).WithNow(func() time.Time { return now })
	ctx := context.Background()

	_, err = chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)

	// Advance past the 30 day TTL; the lazy store check evicts on read.
	now = now.Add(31 * 24 * time.Hour)
	_, err = chain.Discover(ctx, "Example University", "https://www.example.edu", "")
	require.NoError(t, err)

	assert.Equal(t, 2, strat.attempts)
}
