package bench

import (
	"time"
)

// Status is the outcome of a run.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Sample is one successful request.
type Sample struct {
	Latency         time.Duration
	GeneratedTokens int
	TokenSource     TokenSource
}

// Result is the derived summary of a run. Metric fields are nil when no
// request succeeded.
type Result struct {
	RunID    string `json:"run_id"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`

	TotalRequestsAttempted int `json:"total_requests_attempted"`
	TotalRequestsSucceeded int `json:"total_requests_succeeded"`
	TotalTokensGenerated   int `json:"total_tokens_generated"`
	EstimatedTokenSamples  int `json:"estimated_token_samples"`

	MedianLatencySeconds     *float64 `json:"median_latency_seconds,omitempty"`
	P90LatencySeconds        *float64 `json:"p90_latency_seconds,omitempty"`
	P99LatencySeconds        *float64 `json:"p99_latency_seconds,omitempty"`
	MinLatencySeconds        *float64 `json:"min_latency_seconds,omitempty"`
	MaxLatencySeconds        *float64 `json:"max_latency_seconds,omitempty"`
	SumLatencySeconds        *float64 `json:"sum_latency_seconds,omitempty"`
	PauseSeconds             *float64 `json:"pause_seconds,omitempty"`
	TotalElapsedSeconds      *float64 `json:"total_elapsed_seconds,omitempty"`
	RawTokensPerSecond       *float64 `json:"raw_tokens_per_second,omitempty"`
	EffectiveTokensPerSecond *float64 `json:"effective_tokens_per_second,omitempty"`

	WallClockSeconds float64   `json:"wall_clock_seconds"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Succeeded reports whether at least one request produced a sample.
func (r *Result) Succeeded() bool {
	return r.Status == StatusOK
}

func f64(v float64) *float64 { return &v }
