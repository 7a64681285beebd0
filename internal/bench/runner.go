package bench

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/accelbench/vllmbench/internal/completions"
	"github.com/accelbench/vllmbench/internal/metrics"
)

// ErrNoSuccessfulRequests is returned when every attempt of a run failed.
// The accompanying Result has Status failed and no metrics.
var ErrNoSuccessfulRequests = errors.New("no successful requests")

// Completer sends one request and returns the complete response body.
// *completions.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req completions.Request) ([]byte, error)
}

// Runner executes benchmark runs against a Completer. A Runner keeps no
// state between runs and may be reused.
type Runner struct {
	client Completer
	logger *log.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger directs progress and diagnostics to l instead of log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner that sends requests through client.
func NewRunner(client Completer, opts ...Option) *Runner {
	r := &Runner{
		client: client,
		logger: log.Default(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// accumulator holds the mutable state of a single run.
type accumulator struct {
	samples     []Sample
	totalTokens int
	sumLatency  time.Duration
	pausesTaken int
	attempted   int
	estimated   int
}

func (a *accumulator) add(s Sample) {
	a.samples = append(a.samples, s)
	a.totalTokens += s.GeneratedTokens
	a.sumLatency += s.Latency
	if s.TokenSource.Estimated() {
		a.estimated++
	}
}

// Run sends cfg.NumRequests requests one at a time and derives the result.
//
// Failed attempts are logged and dropped. If no attempt succeeds, Run
// returns a failed Result together with ErrNoSuccessfulRequests. If ctx is
// cancelled the loop stops and the result covers the samples collected so
// far; the context error is returned alongside it.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runID := uuid.NewString()
	tag := runID[:8]
	req := cfg.request()
	startedAt := r.now()

	r.logger.Printf("[%s] benchmarking model %s at %s (%d requests)", tag, cfg.ModelName, cfg.EndpointURL, cfg.NumRequests)

	var (
		acc         accumulator
		interrupted error
	)
	for i := 1; i <= cfg.NumRequests; i++ {
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
		acc.attempted++

		s, err := r.attempt(ctx, cfg, req)
		if err != nil {
			r.logger.Printf("[%s] request %d/%d failed: %v", tag, i, cfg.NumRequests, err)
			continue
		}
		switch {
		case s.TokenSource == SourceNone:
			r.logger.Printf("[%s] WARN: request %d/%d: response has no usage stats and no text, counting 0 tokens", tag, i, cfg.NumRequests)
		case s.TokenSource.Estimated():
			r.logger.Printf("[%s] WARN: request %d/%d: no usable usage stats, token count estimated from %s (reduced accuracy)", tag, i, cfg.NumRequests, s.TokenSource)
		}
		acc.add(s)
		r.logger.Printf("[%s] request %d/%d: latency=%.3fs tokens=%d", tag, i, cfg.NumRequests, s.Latency.Seconds(), s.GeneratedTokens)

		if err := r.sleep(ctx, cfg.InterRequestPause); err != nil {
			interrupted = err
			break
		}
		acc.pausesTaken++
	}

	res := r.derive(runID, cfg, &acc, startedAt)

	if len(acc.samples) == 0 {
		r.logger.Printf("[%s] no successful requests out of %d attempts", tag, acc.attempted)
		if interrupted != nil {
			return res, fmt.Errorf("%w: %w", ErrNoSuccessfulRequests, interrupted)
		}
		return res, ErrNoSuccessfulRequests
	}

	r.logger.Printf("[%s] benchmark completed: %d/%d succeeded, median latency %.3fs, effective %.2f tok/s",
		tag, res.TotalRequestsSucceeded, res.TotalRequestsAttempted, *res.MedianLatencySeconds, *res.EffectiveTokensPerSecond)
	if interrupted != nil {
		return res, fmt.Errorf("benchmark interrupted: %w", interrupted)
	}
	return res, nil
}

// attempt performs one request. The latency window covers sending the
// request and reading the whole body; decoding happens after it closes.
func (r *Runner) attempt(ctx context.Context, cfg Config, req completions.Request) (Sample, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	start := r.now()
	body, err := r.client.Complete(reqCtx, req)
	end := r.now()
	if err != nil {
		return Sample{}, err
	}

	resp, err := completions.Decode(body)
	if err != nil {
		return Sample{}, err
	}
	n, src := countTokens(resp)

	latency := end.Sub(start)
	if latency < 0 {
		latency = 0
	}
	return Sample{Latency: latency, GeneratedTokens: n, TokenSource: src}, nil
}

func (r *Runner) derive(runID string, cfg Config, acc *accumulator, startedAt time.Time) *Result {
	completedAt := r.now()
	res := &Result{
		RunID:                  runID,
		Model:                  cfg.ModelName,
		Endpoint:               cfg.EndpointURL,
		TotalRequestsAttempted: acc.attempted,
		TotalRequestsSucceeded: len(acc.samples),
		TotalTokensGenerated:   acc.totalTokens,
		EstimatedTokenSamples:  acc.estimated,
		WallClockSeconds:       completedAt.Sub(startedAt).Seconds(),
		StartedAt:              startedAt.UTC(),
		CompletedAt:            completedAt.UTC(),
	}

	if len(acc.samples) == 0 {
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("no successful requests out of %d attempts", acc.attempted)
		return res
	}

	latencies := make([]float64, len(acc.samples))
	for i, s := range acc.samples {
		latencies[i] = s.Latency.Seconds()
	}
	summary := metrics.SummarizeLatencies(latencies)

	sumLatency := acc.sumLatency.Seconds()
	pause := (time.Duration(acc.pausesTaken) * cfg.InterRequestPause).Seconds()
	elapsed := sumLatency + pause

	res.Status = StatusOK
	res.MedianLatencySeconds = f64(summary.Median)
	res.P90LatencySeconds = f64(summary.P90)
	res.P99LatencySeconds = f64(summary.P99)
	res.MinLatencySeconds = f64(summary.Min)
	res.MaxLatencySeconds = f64(summary.Max)
	res.SumLatencySeconds = f64(sumLatency)
	res.PauseSeconds = f64(pause)
	res.TotalElapsedSeconds = f64(elapsed)
	res.RawTokensPerSecond = f64(metrics.Throughput(acc.totalTokens, sumLatency))
	res.EffectiveTokensPerSecond = f64(metrics.Throughput(acc.totalTokens, elapsed))
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
