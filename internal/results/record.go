package results

import (
	"encoding/json"
	"time"

	"github.com/accelbench/vllmbench/internal/bench"
)

// SchemaVersion is written into every record.
const SchemaVersion = 1

// Record is the on-disk form of a benchmark result. Key names follow the
// flat perf_<model>.json layout so older records still load.
type Record struct {
	SchemaVersion int    `json:"schema_version,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	Model         string `json:"model"`
	Endpoint      string `json:"endpoint,omitempty"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`

	TotalRequests         int `json:"total_requests"`
	SuccessfulRequests    int `json:"successful_requests"`
	TotalTokensGenerated  int `json:"total_tokens_generated"`
	EstimatedTokenSamples int `json:"estimated_token_samples"`

	MedianLatencySeconds *float64 `json:"median_latency_s,omitempty"`
	P90LatencySeconds    *float64 `json:"p90_latency_s,omitempty"`
	P99LatencySeconds    *float64 `json:"p99_latency_s,omitempty"`
	MinLatencySeconds    *float64 `json:"min_latency_s,omitempty"`
	MaxLatencySeconds    *float64 `json:"max_latency_s,omitempty"`
	SumLatencySeconds    *float64 `json:"sum_latency_s,omitempty"`
	PauseSeconds         *float64 `json:"pause_s,omitempty"`
	TotalTimeSeconds     *float64 `json:"total_time_s,omitempty"`
	RawTPS               *float64 `json:"raw_tps,omitempty"`
	EffectiveTPS         *float64 `json:"effective_tps,omitempty"`
	// MeanTPS mirrors EffectiveTPS for readers of the older layout.
	MeanTPS *float64 `json:"mean_tps,omitempty"`

	WallClockSeconds float64    `json:"wall_clock_s,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// FromResult converts a runner result into a record.
func FromResult(res *bench.Result) *Record {
	rec := &Record{
		SchemaVersion:         SchemaVersion,
		RunID:                 res.RunID,
		Model:                 res.Model,
		Endpoint:              res.Endpoint,
		Status:                string(res.Status),
		Error:                 res.Error,
		TotalRequests:         res.TotalRequestsAttempted,
		SuccessfulRequests:    res.TotalRequestsSucceeded,
		TotalTokensGenerated:  res.TotalTokensGenerated,
		EstimatedTokenSamples: res.EstimatedTokenSamples,
		MedianLatencySeconds:  res.MedianLatencySeconds,
		P90LatencySeconds:     res.P90LatencySeconds,
		P99LatencySeconds:     res.P99LatencySeconds,
		MinLatencySeconds:     res.MinLatencySeconds,
		MaxLatencySeconds:     res.MaxLatencySeconds,
		SumLatencySeconds:     res.SumLatencySeconds,
		PauseSeconds:          res.PauseSeconds,
		TotalTimeSeconds:      res.TotalElapsedSeconds,
		RawTPS:                res.RawTokensPerSecond,
		EffectiveTPS:          res.EffectiveTokensPerSecond,
		MeanTPS:               res.EffectiveTokensPerSecond,
		WallClockSeconds:      res.WallClockSeconds,
	}
	if !res.StartedAt.IsZero() {
		t := res.StartedAt
		rec.StartedAt = &t
	}
	if !res.CompletedAt.IsZero() {
		t := res.CompletedAt
		rec.CompletedAt = &t
	}
	return rec
}

// OK reports whether the record describes a run with at least one
// successful request.
func (r *Record) OK() bool {
	return r.Status == string(bench.StatusOK)
}

// Throughput returns the effective tokens per second, reading the older
// mean_tps key when effective_tps is absent.
func (r *Record) Throughput() *float64 {
	if r.EffectiveTPS != nil {
		return r.EffectiveTPS
	}
	return r.MeanTPS
}

// Marshal renders the record as indented JSON with a trailing newline.
func (r *Record) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// normalize fills in the status of records written before it existed.
func (r *Record) normalize() {
	if r.Status != "" {
		return
	}
	if r.Error != "" {
		r.Status = string(bench.StatusFailed)
	} else {
		r.Status = string(bench.StatusOK)
	}
}
