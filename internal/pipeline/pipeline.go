// Package pipeline orchestrates a full roster run: discovery, page
// location, extraction, merge, and enrichment, with bounded parallelism
// per stage.
package pipeline

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roster-cli/internal/assoc"
	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/dedupe"
	"github.com/sells-group/roster-cli/internal/discovery"
	"github.com/sells-group/roster-cli/internal/extract"
	"github.com/sells-group/roster-cli/internal/links"
	"github.com/sells-group/roster-cli/internal/locator"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/store"
)

// CostSource reports gateway spend for the health accessor.
type CostSource interface {
	Summary() (total float64, cached, live int)
}

// Request describes one extraction run.
type Request struct {
	Organization string
	HintURL      string
	Department   string
	MaxRecords   int
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	cfg      config.PipelineConfig
	chain    *discovery.Chain
	locator  *locator.Locator
	resolver *links.Resolver
	detector *assoc.Detector
	costs    CostSource
	store    store.Store

	pagesFailed  atomic.Int64
	reclassified atomic.Int64
	nowFunc      func() time.Time
}

// New creates an Orchestrator. resolver, detector, costs, and store may be
// nil; the corresponding stages are skipped or unrecorded.
func New(cfg config.PipelineConfig, chain *discovery.Chain, loc *locator.Locator, resolver *links.Resolver, detector *assoc.Detector, costs CostSource, st store.Store) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		chain:    chain,
		locator:  loc,
		resolver: resolver,
		detector: detector,
		costs:    costs,
		store:    st,
		nowFunc:  time.Now,
	}
	if loc != nil {
		loc.WithConcurrency(cfg.FetchConcurrency).
			WithFailureHook(func() { o.pagesFailed.Add(1) })
	}
	return o
}

// WithNow sets a fixed clock for testing.
func (o *Orchestrator) WithNow(fn func() time.Time) *Orchestrator {
	o.nowFunc = fn
	return o
}

// Discover runs only the discovery phase.
func (o *Orchestrator) Discover(ctx context.Context, org, hintURL string) (*model.SitePattern, error) {
	return o.chain.Discover(ctx, org, hintURL, "")
}

// CostSummary exposes gateway spend: total external cost plus cached and
// live call counts.
func (o *Orchestrator) CostSummary() model.CostSummary {
	if o.costs == nil {
		return model.CostSummary{}
	}
	total, cached, live := o.costs.Summary()
	return model.CostSummary{TotalExternalCost: total, CachedCallCount: cached, LiveCallCount: live}
}

// RunExtraction executes a full run. It always returns a RunResult with
// whatever records were completed; errors never abort a run, they land in
// the stats. Cancellation mid-run yields partial records with an errored
// status.
func (o *Orchestrator) RunExtraction(ctx context.Context, req Request) (*model.RunResult, error) {
	o.pagesFailed.Store(0)
	o.reclassified.Store(0)

	result := &model.RunResult{
		RunID:        uuid.NewString(),
		Organization: req.Organization,
		Department:   req.Department,
		Records:      []model.PersonRecord{},
	}
	result.Stats.StartedAt = o.nowFunc().UTC()
	result.Stats.Status = model.RunStatusOK

	zap.L().Info("pipeline: run started",
		zap.String("run_id", result.RunID),
		zap.String("organization", req.Organization),
		zap.String("department", req.Department),
	)

	pattern, err := o.chain.Discover(ctx, req.Organization, req.HintURL, req.Department)
	if err != nil {
		result.Stats.Status = model.RunStatusErrored
		result.Stats.Errors = append(result.Stats.Errors, err.Error())
		return o.finish(ctx, result), nil
	}
	result.Pattern = pattern

	if pattern.Method == model.MethodNone && len(pattern.DirectoryPaths) == 0 {
		result.Stats.Status = model.RunStatusDiscoveryFailed
		return o.finish(ctx, result), nil
	}

	pages, err := o.locator.ResolvePages(ctx, pattern, req.Department)
	if err != nil {
		result.Stats.Status = model.RunStatusErrored
		result.Stats.Errors = append(result.Stats.Errors, err.Error())
		return o.finish(ctx, result), nil
	}
	result.Stats.PagesFetched = len(pages)

	records := o.extractStage(ctx, req.Organization, pages)
	if len(records) == 0 {
		if ctx.Err() != nil {
			result.Stats.Status = model.RunStatusErrored
			result.Stats.Errors = append(result.Stats.Errors, ctx.Err().Error())
			return o.finish(ctx, result), nil
		}
		// The cached pattern led nowhere: drop it so the next run
		// re-discovers instead of failing the same way.
		o.chain.Invalidate(ctx, req.Organization, req.Department)
		result.Stats.Status = model.RunStatusNothingFound
		return o.finish(ctx, result), nil
	}

	merged, merges := dedupe.Merge(records)
	result.Stats.RecordsMerged = merges

	maxRecords := req.MaxRecords
	if maxRecords <= 0 {
		maxRecords = o.cfg.MaxRecords
	}
	if maxRecords > 0 && len(merged) > maxRecords {
		// Keep the most complete records when capped.
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Confidence > merged[j].Confidence
		})
		merged = merged[:maxRecords]
	}

	merged = o.resolveStage(ctx, merged, pages)

	result.Records = merged
	result.Stats.RecordsFound = len(merged)
	if ctx.Err() != nil {
		result.Stats.Status = model.RunStatusErrored
		result.Stats.Errors = append(result.Stats.Errors, ctx.Err().Error())
	}
	return o.finish(ctx, result), nil
}

// extractStage runs extraction over pages with bounded parallelism.
// Within one page records keep source order; pages are reassembled in
// input order so output is deterministic.
func (o *Orchestrator) extractStage(ctx context.Context, org string, pages []model.DirectoryPage) []model.PersonRecord {
	extractor := extract.New(org)
	perPage := make([][]model.PersonRecord, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyOr(o.cfg.ExtractConcurrency, 4))
	for i := range pages {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil // work not yet started is skipped on cancellation
			}
			recs := extractor.Extract(pages[i])
			for j := range recs {
				links.ClassifyAll(&recs[j])
			}
			perPage[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	var out []model.PersonRecord
	for _, recs := range perPage {
		out = append(out, recs...)
	}
	return out
}

// resolveStage runs link replacement and association detection over the
// merged records, capped tighter than extraction because both may spend
// metered gateway calls.
func (o *Orchestrator) resolveStage(ctx context.Context, records []model.PersonRecord, pages []model.DirectoryPage) []model.PersonRecord {
	resolve := o.cfg.EnableLinkResolve && o.resolver != nil
	detect := o.cfg.EnableAssociations && o.detector != nil
	if !resolve && !detect {
		return records
	}

	pageByURL := make(map[string]model.DirectoryPage, len(pages))
	for _, p := range pages {
		pageByURL[p.URL] = p
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyOr(o.cfg.ResolveConcurrency, 2))
	for i := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rec := records[i]
			if resolve {
				var n int
				rec, n = o.resolver.ResolveLowValue(gctx, rec)
				o.reclassified.Add(int64(n))
			}
			if detect {
				rec = o.detector.Detect(gctx, rec, pageByURL[rec.Provenance.SourceURL])
			}
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func concurrencyOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

// finish stamps final stats, persists the run, and logs the outcome.
func (o *Orchestrator) finish(ctx context.Context, result *model.RunResult) *model.RunResult {
	result.Stats.FinishedAt = o.nowFunc().UTC()
	result.Stats.PagesFailed = int(o.pagesFailed.Load())
	result.Stats.LinksReclassified = int(o.reclassified.Load())
	if o.costs != nil {
		total, cached, live := o.costs.Summary()
		result.Stats.CostUSD = total
		result.Stats.CachedCalls = cached
		result.Stats.ExternalCalls = live
	}

	if o.store != nil {
		// Persist even when the run context was cancelled; the record of a
		// cancelled run is still useful for re-discovery decisions.
		ctx = context.WithoutCancel(ctx)
		run := &store.RunRecord{
			ID:           result.RunID,
			Organization: result.Organization,
			Department:   result.Department,
			Stats:        result.Stats,
			CreatedAt:    result.Stats.FinishedAt,
		}
		if err := o.store.SaveRun(ctx, run); err != nil {
			zap.L().Warn("pipeline: run record save failed", zap.Error(err))
		}
	}

	zap.L().Info("pipeline: run finished",
		zap.String("run_id", result.RunID),
		zap.String("status", string(result.Stats.Status)),
		zap.Int("records", result.Stats.RecordsFound),
		zap.Int("merged", result.Stats.RecordsMerged),
		zap.Int("pages", result.Stats.PagesFetched),
		zap.Float64("cost_usd", result.Stats.CostUSD),
	)
	return result
}
