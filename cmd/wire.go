package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/assoc"
	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/cost"
	"github.com/sells-group/roster-cli/internal/discovery"
	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/gateway"
	"github.com/sells-group/roster-cli/internal/links"
	"github.com/sells-group/roster-cli/internal/locator"
	"github.com/sells-group/roster-cli/internal/pipeline"
	"github.com/sells-group/roster-cli/internal/store"
	"github.com/sells-group/roster-cli/pkg/assistant"
	"github.com/sells-group/roster-cli/pkg/jina"
)

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildOrchestrator assembles the full pipeline from config.
func buildOrchestrator(st store.Store) (*pipeline.Orchestrator, error) {
	fetcher := fetch.New(cfg.Fetch)

	rates, err := ratesFromConfig(cfg.Pricing)
	if err != nil {
		return nil, err
	}

	searchClient := jina.NewClient(cfg.Search.Key, jina.WithBaseURL(cfg.Search.BaseURL))
	assistantClient := assistant.NewClient(cfg.Assistant.Key)
	calc := cost.NewCalculator(rates)
	ledger := gateway.NewLedger(cfg.Gateway.MaxCallsPerRun, cfg.Gateway.MaxCostPerRunUSD)
	gw := gateway.New(st, searchClient, assistantClient, calc, cfg.Gateway, cfg.Assistant, ledger)

	strategies := []discovery.Strategy{
		discovery.NewSitemapStrategy(fetcher),
		discovery.NewNavigationStrategy(fetcher),
		discovery.NewCommonPathStrategy(fetcher, cfg.Discovery.CommonPaths),
	}
	if cfg.Discovery.Subdomain.Enabled {
		strategies = append(strategies,
			discovery.NewSubdomainStrategy(fetcher, cfg.Discovery.Subdomain.MaxCandidates, cfg.Discovery.CommonPaths))
	}
	if cfg.Discovery.EnableAssistant {
		strategies = append(strategies, discovery.NewAssistantStrategy(gw))
	}
	chain := discovery.NewChain(st, fetcher, cfg.Discovery, strategies...)

	loc := locator.New(fetcher, cfg.Locator).
		WithCourtesyWait(time.Duration(cfg.Fetch.CourtesyWaitMs) * time.Millisecond)
	resolver := links.NewResolver(gw, cfg.Pipeline.ReplacementMargin)
	detector := assoc.New(gw)

	return pipeline.New(cfg.Pipeline, chain, loc, resolver, detector, gw, st), nil
}

func ratesFromConfig(p config.PricingConfig) (cost.Rates, error) {
	if p.RatesFile != "" {
		rates, err := cost.LoadRates(p.RatesFile)
		if err != nil {
			return cost.Rates{}, eris.Wrap(err, "load rates file")
		}
		return rates, nil
	}
	if len(p.Assistant) == 0 {
		return cost.DefaultRates(), nil
	}
	rates := cost.Rates{
		Assistant: make(map[string]cost.ModelRate, len(p.Assistant)),
		Search:    cost.SearchRate{PerQuery: p.Search.PerQuery},
	}
	for model, mp := range p.Assistant {
		rates.Assistant[model] = cost.ModelRate{Input: mp.Input, Output: mp.Output}
	}
	return rates, nil
}
