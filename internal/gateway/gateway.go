// Package gateway is the single chokepoint for metered external calls.
// Every component that needs search or language-model assistance goes
// through Query, which layers caching, quota enforcement, a circuit
// breaker, and retries over the underlying clients.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/cost"
	"github.com/sells-group/roster-cli/internal/resilience"
	"github.com/sells-group/roster-cli/internal/store"
	"github.com/sells-group/roster-cli/pkg/assistant"
	"github.com/sells-group/roster-cli/pkg/jina"
)

// Kind selects which external service a query targets.
type Kind string

const (
	KindSearch    Kind = "search"
	KindAssistant Kind = "assistant"
)

// SearchResult is one ranked result from the search service.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Result is the outcome of a gateway query. When Unavailable is set the
// caller should fall back to its next-cheaper tier; no error is raised.
type Result struct {
	Kind        Kind           `json:"kind"`
	Unavailable bool           `json:"unavailable,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Results     []SearchResult `json:"results,omitempty"` // search
	Text        string         `json:"text,omitempty"`    // assistant
	CostUSD     float64        `json:"cost_usd"`
	Cached      bool           `json:"cached,omitempty"`
}

// cachedPayload is the persisted shape of a successful result.
type cachedPayload struct {
	Results []SearchResult `json:"results,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// Gateway meters access to the search and assistant services.
type Gateway struct {
	store     store.Store
	search    jina.Client
	assistant assistant.Client
	calc      *cost.Calculator
	cfg       config.GatewayConfig
	model     string
	maxTokens int64
	ledger    *Ledger
	breaker   *resilience.Breaker

	nowFunc func() time.Time
}

// New creates a gateway. store may be nil, which degrades to always-miss
// caching. The ledger is owned by the run, not the gateway.
func New(st store.Store, search jina.Client, asst assistant.Client, calc *cost.Calculator,
	cfg config.GatewayConfig, asstCfg config.AssistantConfig, ledger *Ledger) *Gateway {
	maxTokens := int64(asstCfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Gateway{
		store:     st,
		search:    search,
		assistant: asst,
		calc:      calc,
		cfg:       cfg,
		model:     asstCfg.Model,
		maxTokens: maxTokens,
		ledger:    ledger,
		breaker:   resilience.NewBreaker(cfg.BreakerThreshold, time.Duration(cfg.BreakerResetSecs)*time.Second),
		nowFunc:   time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (g *Gateway) WithNow(fn func() time.Time) *Gateway {
	g.nowFunc = fn
	return g
}

// Summary exposes the run's spend counters.
func (g *Gateway) Summary() (total float64, cached, live int) {
	s := g.ledger.Summary()
	return s.TotalExternalCost, s.CachedCallCount, s.LiveCallCount
}

// CacheKey computes the stable hash for (kind, payload). The payload is
// whitespace-collapsed and lower-cased so trivially different phrasings of
// the same query share an entry.
func CacheKey(kind Kind, payload string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(payload), " "))
	sum := sha256.Sum256([]byte(string(kind) + "\n" + norm))
	return hex.EncodeToString(sum[:])
}

// Query performs a metered external call. Cache hits return immediately at
// zero cost. Quota exhaustion and an open breaker yield an unavailable
// result rather than an error; only genuine call failures return an error.
func (g *Gateway) Query(ctx context.Context, kind Kind, payload string) (*Result, error) {
	if kind != KindSearch && kind != KindAssistant {
		return nil, eris.Errorf("gateway: unknown kind %q", kind)
	}

	key := CacheKey(kind, payload)

	if cached := g.lookup(ctx, key); cached != nil {
		g.ledger.RecordCached()
		return cached, nil
	}

	if err := g.breaker.Allow(); err != nil {
		zap.L().Debug("gateway: circuit open, returning unavailable",
			zap.String("kind", string(kind)),
		)
		return &Result{Kind: kind, Unavailable: true, Reason: "circuit_open"}, nil
	}

	if err := g.ledger.Reserve(); err != nil {
		zap.L().Info("gateway: quota exhausted, returning unavailable",
			zap.String("kind", string(kind)),
		)
		return &Result{Kind: kind, Unavailable: true, Reason: "quota_exceeded"}, nil
	}

	timeout := time.Duration(g.cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    g.cfg.Retries + 1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}

	res, err := resilience.DoVal(ctx, retryCfg, "gateway."+string(kind), func(ctx context.Context) (*Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return g.perform(callCtx, kind, payload)
	})
	g.breaker.Record(err)
	if err != nil {
		return nil, eris.Wrapf(err, "gateway: %s call failed", kind)
	}

	g.ledger.RecordCost(res.CostUSD)
	g.cache(ctx, key, kind, payload, res)
	return res, nil
}

func (g *Gateway) perform(ctx context.Context, kind Kind, payload string) (*Result, error) {
	switch kind {
	case KindSearch:
		resp, err := g.search.Search(ctx, payload)
		if err != nil {
			return nil, err
		}
		results := make([]SearchResult, 0, len(resp.Data))
		for _, r := range resp.Data {
			results = append(results, SearchResult{
				Title:       r.Title,
				URL:         r.URL,
				Description: r.Description,
			})
		}
		return &Result{Kind: kind, Results: results, CostUSD: g.calc.SearchQuery()}, nil

	case KindAssistant:
		resp, err := g.assistant.Complete(ctx, assistant.CompletionRequest{
			Model:     g.model,
			MaxTokens: g.maxTokens,
			Prompt:    payload,
		})
		if err != nil {
			return nil, err
		}
		usd := g.calc.Assistant(g.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
		return &Result{Kind: kind, Text: resp.Text, CostUSD: usd}, nil
	}
	return nil, eris.Errorf("gateway: unknown kind %q", kind)
}

// lookup reads the external cache; any store failure degrades to a miss.
func (g *Gateway) lookup(ctx context.Context, key string) *Result {
	if g.store == nil {
		return nil
	}
	entry, err := g.store.GetExternal(ctx, key)
	if err != nil {
		zap.L().Warn("gateway: cache read failed, treating as miss", zap.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}

	var payload cachedPayload
	if err := json.Unmarshal(entry.Result, &payload); err != nil {
		zap.L().Warn("gateway: cache entry corrupt, treating as miss", zap.Error(err))
		return nil
	}
	return &Result{
		Kind:    Kind(entry.Kind),
		Results: payload.Results,
		Text:    payload.Text,
		Cached:  true,
	}
}

func (g *Gateway) cache(ctx context.Context, key string, kind Kind, payload string, res *Result) {
	if g.store == nil {
		return
	}
	body, err := json.Marshal(cachedPayload{Results: res.Results, Text: res.Text})
	if err != nil {
		zap.L().Warn("gateway: marshal cache entry", zap.Error(err))
		return
	}

	ttl := time.Duration(g.cfg.CacheTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := g.nowFunc().UTC()
	entry := &store.ExternalCacheEntry{
		Key:       key,
		Kind:      string(kind),
		Payload:   payload,
		Result:    body,
		CostUSD:   res.CostUSD,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := g.store.PutExternal(ctx, entry); err != nil {
		zap.L().Warn("gateway: cache write failed", zap.Error(err))
	}
}
