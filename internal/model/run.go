package model

import "time"

// RunStatus distinguishes why a run produced the records it did.
type RunStatus string

const (
	RunStatusOK              RunStatus = "ok"
	RunStatusNothingFound    RunStatus = "nothing_found"
	RunStatusDiscoveryFailed RunStatus = "discovery_failed"
	RunStatusErrored         RunStatus = "errored"
)

// RunStats aggregates counters for one extraction run. Created at run
// start, mutated throughout, emitted at run end.
type RunStats struct {
	RecordsFound      int       `json:"records_found"`
	RecordsMerged     int       `json:"records_merged"`
	LinksReclassified int       `json:"links_reclassified"`
	ExternalCalls     int       `json:"external_calls"`
	CachedCalls       int       `json:"cached_calls"`
	CostUSD           float64   `json:"cost_usd"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	Status            RunStatus `json:"status"`
	Errors            []string  `json:"errors,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// RunResult is the structured output of a full extraction run.
type RunResult struct {
	RunID        string         `json:"run_id"`
	Organization string         `json:"organization"`
	Department   string         `json:"department,omitempty"`
	Pattern      *SitePattern   `json:"pattern,omitempty"`
	Records      []PersonRecord `json:"records"`
	Stats        RunStats       `json:"stats"`
}

// CostSummary exposes gateway spend for the health accessor.
type CostSummary struct {
	TotalExternalCost float64 `json:"total_external_cost"`
	CachedCallCount   int     `json:"cached_call_count"`
	LiveCallCount     int     `json:"live_call_count"`
}
