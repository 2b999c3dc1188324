package models

import "time"

// Endpoint identifies a query surface of the jobs API.
type Endpoint string

const (
	EndpointSearch       Endpoint = "search"
	EndpointHistogram    Endpoint = "histogram"
	EndpointTopCompanies Endpoint = "top_companies"
	EndpointGeodata      Endpoint = "geodata"
	EndpointHistory      Endpoint = "history"
	EndpointCategories   Endpoint = "categories"
)

// AuxiliaryEndpoints lists every endpoint besides search, in call order.
var AuxiliaryEndpoints = []Endpoint{
	EndpointHistogram,
	EndpointTopCompanies,
	EndpointGeodata,
	EndpointHistory,
	EndpointCategories,
}

// RunStatus summarises how a fetch run ended.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunStale   RunStatus = "stale"
	RunFailed  RunStatus = "failed"
)

// EndpointOutcome records a single adapter call made during a run.
type EndpointOutcome struct {
	Endpoint Endpoint      `json:"endpoint"`
	OK       bool          `json:"ok"`
	Records  int           `json:"records"`
	Latency  time.Duration `json:"latency"`
	Error    string        `json:"error,omitempty"`
	Fallback bool          `json:"fallback"`
}

// FetchRun is the immutable record of one orchestrator invocation.
type FetchRun struct {
	ID           string            `json:"id"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Status       RunStatus         `json:"status"`
	Outcomes     []EndpointOutcome `json:"outcomes"`
	TotalRecords int               `json:"total_records"`
	Persisted    bool              `json:"persisted"`

	// RenderedInline is set when the producer draws charts from the live
	// dataset itself; consumers should not redraw them from the snapshot.
	RenderedInline bool `json:"rendered_inline,omitempty"`
}

// Failures counts the endpoint calls that did not succeed.
func (r FetchRun) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK {
			n++
		}
	}
	return n
}
