package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/accelbench/vllmbench/internal/completions"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// step scripts one Complete call: the clock advances by latency, then body
// or err is returned.
type step struct {
	latency time.Duration
	body    string
	err     error
}

type scriptedCompleter struct {
	clock *fakeClock
	steps []step
	reqs  []completions.Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req completions.Request) ([]byte, error) {
	if len(s.reqs) >= len(s.steps) {
		return nil, fmt.Errorf("unexpected request %d", len(s.reqs)+1)
	}
	st := s.steps[len(s.reqs)]
	s.reqs = append(s.reqs, req)
	s.clock.advance(st.latency)
	if st.err != nil {
		return nil, st.err
	}
	return []byte(st.body), nil
}

type testHarness struct {
	runner *Runner
	client *scriptedCompleter
	clock  *fakeClock
	pauses []time.Duration
	logs   *bytes.Buffer
}

func newHarness(steps ...step) *testHarness {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	h := &testHarness{
		clock:  clock,
		client: &scriptedCompleter{clock: clock, steps: steps},
		logs:   &bytes.Buffer{},
	}
	h.runner = NewRunner(h.client, WithLogger(log.New(h.logs, "", 0)))
	h.runner.now = clock.now
	h.runner.sleep = func(_ context.Context, d time.Duration) error {
		h.pauses = append(h.pauses, d)
		clock.advance(d)
		return nil
	}
	return h
}

func usageBody(prompt, total int) string {
	return fmt.Sprintf(`{"choices":[{"text":"ignored"}],"usage":{"prompt_tokens":%d,"total_tokens":%d}}`, prompt, total)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func testConfig(n int) Config {
	cfg := DefaultConfig()
	cfg.ModelName = "qwen2_5_32b"
	cfg.NumRequests = n
	cfg.InterRequestPause = 500 * time.Millisecond
	return cfg
}

func approx(t *testing.T, name string, got *float64, want, tol float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s is nil, want %f", name, want)
	}
	if math.Abs(*got-want) > tol {
		t.Errorf("%s = %f, want %f", name, *got, want)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(
		step{latency: ms(1000), body: usageBody(10, 50)},
		step{latency: ms(1200), body: usageBody(10, 51)},
		step{latency: ms(900), body: usageBody(10, 50)},
		step{latency: ms(1100), body: usageBody(10, 50)},
		step{latency: ms(1000), body: usageBody(10, 50)},
	)

	res, err := h.runner.Run(context.Background(), testConfig(5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusOK {
		t.Errorf("status = %s, want ok", res.Status)
	}
	if res.TotalRequestsAttempted != 5 || res.TotalRequestsSucceeded != 5 {
		t.Errorf("attempted/succeeded = %d/%d, want 5/5", res.TotalRequestsAttempted, res.TotalRequestsSucceeded)
	}
	if res.TotalTokensGenerated != 201 {
		t.Errorf("tokens = %d, want 201", res.TotalTokensGenerated)
	}
	approx(t, "sum latency", res.SumLatencySeconds, 5.2, 1e-9)
	approx(t, "pause", res.PauseSeconds, 2.5, 1e-9)
	approx(t, "total elapsed", res.TotalElapsedSeconds, 7.7, 1e-9)
	approx(t, "median", res.MedianLatencySeconds, 1.0, 1e-9)
	approx(t, "raw tps", res.RawTokensPerSecond, 38.65, 0.01)
	approx(t, "effective tps", res.EffectiveTokensPerSecond, 26.10, 0.01)
	approx(t, "min", res.MinLatencySeconds, 0.9, 1e-9)
	approx(t, "max", res.MaxLatencySeconds, 1.2, 1e-9)

	if *res.EffectiveTokensPerSecond > *res.RawTokensPerSecond {
		t.Error("effective throughput exceeds raw throughput")
	}
	if res.EstimatedTokenSamples != 0 {
		t.Errorf("estimated samples = %d, want 0", res.EstimatedTokenSamples)
	}
	if len(h.pauses) != 5 {
		t.Errorf("pauses = %d, want 5", len(h.pauses))
	}
	if math.Abs(res.WallClockSeconds-7.7) > 1e-9 {
		t.Errorf("wall clock = %f, want 7.7 on the fake clock", res.WallClockSeconds)
	}
	if res.RunID == "" {
		t.Error("run ID not set")
	}
	if !res.CompletedAt.After(res.StartedAt) {
		t.Error("completed_at should be after started_at")
	}

	for i, req := range h.client.reqs {
		if req.Model != "qwen2_5_32b" || req.Prompt != DefaultPrompt || req.MaxTokens != 100 || req.Temperature != 0.1 {
			t.Errorf("request %d: unexpected payload %+v", i+1, req)
		}
	}
}

func TestRun_PartialFailure(t *testing.T) {
	h := newHarness(
		step{latency: ms(1000), body: usageBody(5, 25)},
		step{latency: ms(300), err: errors.New("connection refused")},
		step{latency: ms(1000), body: usageBody(5, 25)},
		step{latency: ms(60000), err: context.DeadlineExceeded},
		step{latency: ms(1000), body: usageBody(5, 25)},
	)

	res, err := h.runner.Run(context.Background(), testConfig(5))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalRequestsAttempted != 5 {
		t.Errorf("attempted = %d, want 5", res.TotalRequestsAttempted)
	}
	if res.TotalRequestsSucceeded != 3 {
		t.Errorf("succeeded = %d, want 3", res.TotalRequestsSucceeded)
	}
	if len(h.pauses) != 3 {
		t.Errorf("pauses = %d, want 3 (failures take no pause)", len(h.pauses))
	}
	approx(t, "sum latency", res.SumLatencySeconds, 3.0, 1e-9)
	approx(t, "total elapsed", res.TotalElapsedSeconds, 4.5, 1e-9)
	if res.TotalTokensGenerated != 60 {
		t.Errorf("tokens = %d, want 60", res.TotalTokensGenerated)
	}
	if !strings.Contains(h.logs.String(), "request 2/5 failed: connection refused") {
		t.Errorf("missing failure diagnostic in logs:\n%s", h.logs.String())
	}
	if len(h.client.reqs) != 5 {
		t.Errorf("requests sent = %d, want exactly 5 (no retries)", len(h.client.reqs))
	}
}

func TestRun_AllFail(t *testing.T) {
	h := newHarness(
		step{latency: ms(100), err: errors.New("refused")},
		step{latency: ms(100), body: "not json"},
		step{latency: ms(100), err: &completions.StatusError{StatusCode: 500}},
	)

	res, err := h.runner.Run(context.Background(), testConfig(3))
	if !errors.Is(err, ErrNoSuccessfulRequests) {
		t.Fatalf("expected ErrNoSuccessfulRequests, got %v", err)
	}
	if res == nil {
		t.Fatal("expected a failure result")
	}
	if res.Status != StatusFailed || res.Succeeded() {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if res.Error == "" {
		t.Error("failure result should carry an error message")
	}
	if res.MedianLatencySeconds != nil || res.RawTokensPerSecond != nil || res.EffectiveTokensPerSecond != nil {
		t.Error("failure result must not carry metrics")
	}
	if res.TotalRequestsAttempted != 3 || res.TotalRequestsSucceeded != 0 {
		t.Errorf("attempted/succeeded = %d/%d, want 3/0", res.TotalRequestsAttempted, res.TotalRequestsSucceeded)
	}
	if len(h.pauses) != 0 {
		t.Errorf("pauses = %d, want 0", len(h.pauses))
	}
}

func TestRun_TextFallback(t *testing.T) {
	h := newHarness(step{latency: ms(1000), body: `{"choices":[{"text":"a b c"}]}`})

	res, err := h.runner.Run(context.Background(), testConfig(1))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTokensGenerated != 3 {
		t.Errorf("tokens = %d, want 3", res.TotalTokensGenerated)
	}
	if res.EstimatedTokenSamples != 1 {
		t.Errorf("estimated samples = %d, want 1", res.EstimatedTokenSamples)
	}
	if !strings.Contains(h.logs.String(), "reduced accuracy") {
		t.Errorf("expected reduced-accuracy diagnostic, logs:\n%s", h.logs.String())
	}
}

func TestRun_IgnoresUnreadFields(t *testing.T) {
	h := newHarness(step{
		latency: ms(1000),
		body:    `{"id":123,"model":["m"],"created":"soon","choices":[{"index":"0","text":"a b c","finish_reason":7}],"usage":{"prompt_tokens":20,"total_tokens":50}}`,
	})

	res, err := h.runner.Run(context.Background(), testConfig(1))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalRequestsSucceeded != 1 || res.TotalTokensGenerated != 30 {
		t.Errorf("succeeded/tokens = %d/%d, want 1/30", res.TotalRequestsSucceeded, res.TotalTokensGenerated)
	}
}

func TestRun_NoTokenData(t *testing.T) {
	h := newHarness(step{latency: ms(1000), body: `{"choices":[]}`})

	res, err := h.runner.Run(context.Background(), testConfig(1))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalRequestsSucceeded != 1 || res.TotalTokensGenerated != 0 {
		t.Errorf("succeeded/tokens = %d/%d, want 1/0", res.TotalRequestsSucceeded, res.TotalTokensGenerated)
	}
	approx(t, "raw tps", res.RawTokensPerSecond, 0, 0)
	if !strings.Contains(h.logs.String(), "counting 0 tokens") {
		t.Errorf("expected missing-data warning, logs:\n%s", h.logs.String())
	}
}

func TestRun_ZeroLatency(t *testing.T) {
	h := newHarness(step{latency: 0, body: usageBody(1, 11)})
	cfg := testConfig(1)
	cfg.InterRequestPause = 0

	res, err := h.runner.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "raw tps", res.RawTokensPerSecond, 0, 0)
	approx(t, "effective tps", res.EffectiveTokensPerSecond, 0, 0)
	if res.TotalTokensGenerated != 10 {
		t.Errorf("tokens = %d, want 10", res.TotalTokensGenerated)
	}
}

func TestRun_OmitModel(t *testing.T) {
	h := newHarness(step{latency: ms(10), body: usageBody(1, 2)})
	cfg := testConfig(1)
	cfg.OmitModel = true
	cfg.API = completions.APIChat

	if _, err := h.runner.Run(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	req := h.client.reqs[0]
	if req.Model != "" {
		t.Errorf("model = %q, want omitted", req.Model)
	}
	if len(req.Messages) != 1 || req.Prompt != "" {
		t.Errorf("expected chat payload, got %+v", req)
	}
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(
		step{latency: ms(1000), body: usageBody(0, 10)},
		step{latency: ms(1000), body: usageBody(0, 10)},
	)
	ctx, cancel := context.WithCancel(context.Background())
	h.runner.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res, err := h.runner.Run(ctx, testConfig(2))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.Status != StatusOK {
		t.Fatalf("expected partial ok result, got %+v", res)
	}
	if res.TotalRequestsAttempted != 1 || res.TotalRequestsSucceeded != 1 {
		t.Errorf("attempted/succeeded = %d/%d, want 1/1", res.TotalRequestsAttempted, res.TotalRequestsSucceeded)
	}
	approx(t, "pause", res.PauseSeconds, 0, 0)
	if len(h.client.reqs) != 1 {
		t.Errorf("requests sent = %d, want 1", len(h.client.reqs))
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	h := newHarness()
	cfg := testConfig(0)
	if _, err := h.runner.Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for zero requests")
	}
	if len(h.client.reqs) != 0 {
		t.Error("no request should be sent for an invalid config")
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("zero sleep: %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("short sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled sleep: got %v", err)
	}
}
