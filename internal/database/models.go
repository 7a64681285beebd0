package database

import (
	"time"

	"github.com/accelbench/vllmbench/internal/results"
)

// PerfRun is one published benchmark result.
type PerfRun struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`

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
	WallClockSeconds     float64  `json:"wall_clock_s"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RunFromRecord converts a result record into a row. The row ID is the
// record's run ID, which may be empty for records that predate run IDs.
func RunFromRecord(rec *results.Record) *PerfRun {
	return &PerfRun{
		ID:                    rec.RunID,
		Model:                 rec.Model,
		Endpoint:              rec.Endpoint,
		Status:                rec.Status,
		Error:                 rec.Error,
		TotalRequests:         rec.TotalRequests,
		SuccessfulRequests:    rec.SuccessfulRequests,
		TotalTokensGenerated:  rec.TotalTokensGenerated,
		EstimatedTokenSamples: rec.EstimatedTokenSamples,
		MedianLatencySeconds:  rec.MedianLatencySeconds,
		P90LatencySeconds:     rec.P90LatencySeconds,
		P99LatencySeconds:     rec.P99LatencySeconds,
		MinLatencySeconds:     rec.MinLatencySeconds,
		MaxLatencySeconds:     rec.MaxLatencySeconds,
		SumLatencySeconds:     rec.SumLatencySeconds,
		PauseSeconds:          rec.PauseSeconds,
		TotalTimeSeconds:      rec.TotalTimeSeconds,
		RawTPS:                rec.RawTPS,
		EffectiveTPS:          rec.Throughput(),
		WallClockSeconds:      rec.WallClockSeconds,
		StartedAt:             rec.StartedAt,
		CompletedAt:           rec.CompletedAt,
	}
}

// RunFilter holds optional filters for listing runs.
type RunFilter struct {
	Status string // "ok", "failed", or ""
	Model  string // case-insensitive substring match
	Limit  int
	Offset int
}

// RunListItem is a condensed row for the runs list.
type RunListItem struct {
	ID                   string    `json:"id"`
	Model                string    `json:"model"`
	Status               string    `json:"status"`
	SuccessfulRequests   int       `json:"successful_requests"`
	TotalRequests        int       `json:"total_requests"`
	MedianLatencySeconds *float64  `json:"median_latency_s,omitempty"`
	EffectiveTPS         *float64  `json:"effective_tps,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// listLimit returns the page size for f: 50 by default, at most 200.
func listLimit(f RunFilter) int {
	if f.Limit > 0 && f.Limit <= 200 {
		return f.Limit
	}
	return 50
}
