// Package discovery infers how an organization publishes its people
// directories. Strategies are tried in fixed priority order, cheapest
// first, stopping at the first result above the confidence floor.
package discovery

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/store"
)

// Input carries what a strategy has to work with.
type Input struct {
	Organization string
	BaseURL      string
	Department   string
}

// Strategy attempts to infer a site pattern. A strategy whose structural
// assumptions don't hold returns (nil, nil); errors are reserved for
// unexpected failures and never abort the chain.
type Strategy interface {
	Name() model.DiscoveryMethod
	Attempt(ctx context.Context, in Input) (*model.SitePattern, error)
}

// Chain runs strategies in order and caches successful patterns.
type Chain struct {
	store      store.Store
	fetcher    *fetch.Fetcher
	strategies []Strategy
	floor      float64
	ttl        time.Duration

	nowFunc func() time.Time
}

// NewChain creates a discovery chain. Strategies are tried in the order
// given.
func NewChain(st store.Store, fetcher *fetch.Fetcher, cfg config.DiscoveryConfig, strategies ...Strategy) *Chain {
	floor := cfg.ConfidenceFloor
	if floor <= 0 {
		floor = 0.5
	}
	ttl := time.Duration(cfg.PatternTTLDays) * 24 * time.Hour
	if ttl <= 0 {
		ttl = model.DefaultPatternTTL
	}
	return &Chain{
		store:      st,
		fetcher:    fetcher,
		strategies: strategies,
		floor:      floor,
		ttl:        ttl,
		nowFunc:    time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (c *Chain) WithNow(fn func() time.Time) *Chain {
	c.nowFunc = fn
	return c
}

// Discover returns a pattern for the organization, serving from cache when
// a valid entry exists. On strategy exhaustion the best sub-floor candidate
// is returned flagged low-confidence, since partial information still has
// extraction value, but is not cached, so the next run tries again.
func (c *Chain) Discover(ctx context.Context, org, hintURL, department string) (*model.SitePattern, error) {
	orgKey := model.NormalizeOrgKey(org)
	deptKey := model.NormalizeOrgKey(department)

	if c.store != nil {
		cached, err := c.store.GetPattern(ctx, orgKey, deptKey)
		if err != nil {
			zap.L().Warn("discovery: pattern cache read failed, treating as miss", zap.Error(err))
		} else if cached != nil {
			zap.L().Debug("discovery: pattern cache hit",
				zap.String("org", orgKey),
				zap.String("method", string(cached.Method)),
			)
			return cached, nil
		}
	}

	baseURL := c.resolveBaseURL(ctx, org, hintURL)
	in := Input{Organization: org, BaseURL: baseURL, Department: department}

	var best *model.SitePattern
	for _, s := range c.strategies {
		p, err := s.Attempt(ctx, in)
		if err != nil {
			zap.L().Debug("discovery: strategy failed, trying next",
				zap.String("strategy", string(s.Name())),
				zap.String("org", orgKey),
				zap.Error(err),
			)
			continue
		}
		if p == nil {
			continue
		}

		p.OrgKey = orgKey
		p.Method = s.Name()
		p.DiscoveredAt = c.nowFunc().UTC()
		p.TTL = c.ttl
		if p.BaseURL == "" {
			p.BaseURL = baseURL
		}

		if p.Confidence >= c.floor {
			c.persist(ctx, orgKey, deptKey, p)
			zap.L().Info("discovery: pattern found",
				zap.String("org", orgKey),
				zap.String("method", string(p.Method)),
				zap.Float64("confidence", p.Confidence),
				zap.Int("paths", len(p.DirectoryPaths)),
			)
			return p, nil
		}
		if best == nil || p.Confidence > best.Confidence {
			best = p
		}
	}

	if best != nil {
		best.LowConfidence = true
		zap.L().Warn("discovery: all strategies below floor, returning best candidate",
			zap.String("org", orgKey),
			zap.String("method", string(best.Method)),
			zap.Float64("confidence", best.Confidence),
		)
		return best, nil
	}

	// Total discovery failure still yields a usable (empty) pattern; the
	// orchestrator reports it through run status rather than an error.
	zap.L().Warn("discovery: no strategy produced a candidate", zap.String("org", orgKey))
	return &model.SitePattern{
		OrgKey:        orgKey,
		BaseURL:       baseURL,
		Method:        model.MethodNone,
		Confidence:    0,
		LowConfidence: true,
		DiscoveredAt:  c.nowFunc().UTC(),
		TTL:           c.ttl,
	}, nil
}

// Invalidate drops the cached pattern so the next Discover re-runs the
// chain. Called when extraction against a pattern yields zero records.
func (c *Chain) Invalidate(ctx context.Context, org, department string) {
	if c.store == nil {
		return
	}
	if err := c.store.InvalidatePattern(ctx, model.NormalizeOrgKey(org), model.NormalizeOrgKey(department)); err != nil {
		zap.L().Warn("discovery: invalidate pattern failed", zap.Error(err))
	}
}

func (c *Chain) persist(ctx context.Context, orgKey, deptKey string, p *model.SitePattern) {
	if c.store == nil {
		return
	}
	if err := c.store.PutPattern(ctx, orgKey, deptKey, p); err != nil {
		zap.L().Warn("discovery: pattern cache write failed", zap.Error(err))
	}
}

// resolveBaseURL returns the hint when given, otherwise probes common
// domain shapes derived from the organization name.
func (c *Chain) resolveBaseURL(ctx context.Context, org, hintURL string) string {
	if hintURL != "" {
		return strings.TrimSuffix(hintURL, "/")
	}
	if c.fetcher == nil {
		return ""
	}

	compact := strings.ToLower(strings.Join(strings.Fields(org), ""))
	compact = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, compact)
	if compact == "" {
		return ""
	}

	for _, tld := range []string{".edu", ".org", ".com"} {
		candidate := "https://www." + compact + tld
		code, err := c.fetcher.Head(ctx, candidate)
		if err == nil && code < 400 {
			return candidate
		}
	}
	return ""
}
