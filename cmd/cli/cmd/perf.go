package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/accelbench/vllmbench/cmd/cli/format"
	"github.com/accelbench/vllmbench/internal/bench"
	"github.com/accelbench/vllmbench/internal/completions"
	"github.com/accelbench/vllmbench/internal/results"
	"github.com/accelbench/vllmbench/internal/storage"
)

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Measure latency and throughput of a completions endpoint",
	Long: `Send a fixed prompt to the endpoint one request at a time, then report the
median latency and the raw and effective token throughput. The result is
written to results/perf_<model>.json unless --results-file says otherwise.

Exit status is 2 when no request succeeded and 3 when the result file could
not be written.

Examples:
  vllmbench perf --model qwen2_5_32b
  ENGINE=deepseek-v3-54b vllmbench perf --api chat --url http://localhost:8000/v1/chat/completions
  vllmbench perf --model qwen2_5_32b --s3-uri s3://bench-results/perf --publish`,
	Args: cobra.NoArgs,
	RunE: runPerf,
}

func init() {
	d := bench.DefaultConfig()
	f := perfCmd.Flags()
	f.String("url", d.EndpointURL, "completions endpoint URL")
	f.String("model", d.ModelName, "model name sent in the request and used for the result file (env ENGINE)")
	f.String("prompt", d.Prompt, "prompt sent on every request")
	f.Int("max-tokens", d.MaxTokens, "max_tokens sent on every request")
	f.Float64("temperature", d.Temperature, "sampling temperature")
	f.Int("requests", d.NumRequests, "number of sequential requests")
	f.Duration("pause", d.InterRequestPause, "pause after each successful request")
	f.Duration("timeout", d.RequestTimeout, "per-request timeout")
	f.String("api", string(d.API), "request shape: completions or chat")
	f.String("api-key", "", "bearer token for the endpoint (env VLLMBENCH_API_KEY or OPENAI_API_KEY)")
	f.Bool("no-model", false, "omit the model field from the request body")
	f.String("results-file", "", "result file path (default <results-dir>/perf_<model>.json)")
	f.String("s3-uri", "", "also upload the result file to s3://bucket/prefix")
	f.String("s3-region", "", "AWS region for --s3-uri (default from the environment)")
	f.Bool("publish", false, "also publish the result to the results API (--api-url)")
	f.Bool("dry-run", false, "print the resolved configuration and exit")

	for key, flag := range map[string]string{
		"url":          "url",
		"model":        "model",
		"prompt":       "prompt",
		"max_tokens":   "max-tokens",
		"temperature":  "temperature",
		"requests":     "requests",
		"pause":        "pause",
		"timeout":      "timeout",
		"api":          "api",
		"api_key":      "api-key",
		"no_model":     "no-model",
		"results_file": "results-file",
		"s3_uri":       "s3-uri",
		"s3_region":    "s3-region",
		"publish":      "publish",
		"dry_run":      "dry-run",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
	RootCmd.AddCommand(perfCmd)
}

// recordUploader stores a result file somewhere durable.
type recordUploader interface {
	Upload(ctx context.Context, uri, name string, body []byte) (string, error)
}

// newUploader is replaced in tests.
var newUploader = func(ctx context.Context, region string) (recordUploader, error) {
	return storage.NewS3Uploader(ctx, region)
}

// newCompleter is replaced in tests.
var newCompleter = func(url, apiKey string) bench.Completer {
	return completions.New(url, completions.WithAPIKey(apiKey))
}

// resolveBenchConfig builds the run configuration from flags, environment,
// and config file.
func resolveBenchConfig() (bench.Config, error) {
	api, err := completions.ParseAPI(viper.GetString("api"))
	if err != nil {
		return bench.Config{}, err
	}
	cfg := bench.Config{
		EndpointURL:       viper.GetString("url"),
		ModelName:         viper.GetString("model"),
		Prompt:            viper.GetString("prompt"),
		MaxTokens:         viper.GetInt("max_tokens"),
		Temperature:       viper.GetFloat64("temperature"),
		NumRequests:       viper.GetInt("requests"),
		InterRequestPause: viper.GetDuration("pause"),
		RequestTimeout:    viper.GetDuration("timeout"),
		API:               api,
		OmitModel:         viper.GetBool("no_model"),
	}
	if err := cfg.Validate(); err != nil {
		return bench.Config{}, err
	}
	return cfg, nil
}

func runPerf(cmd *cobra.Command, args []string) error {
	cfg, err := resolveBenchConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()
	if viper.GetBool("dry_run") {
		_, err := pp.Fprintln(out, cfg)
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := bench.NewRunner(newCompleter(cfg.EndpointURL, viper.GetString("api_key")))
	res, runErr := runner.Run(ctx, cfg)
	if res == nil {
		return runErr
	}
	rec := results.FromResult(res)

	path := viper.GetString("results_file")
	if path == "" {
		path = results.DefaultPath(viper.GetString("results_dir"), cfg.ModelName)
	}

	if err := printPerf(out, rec, path); err != nil {
		return err
	}

	if err := results.Write(path, rec); err != nil {
		return errors.Join(runErr, err)
	}
	log.Printf("Performance results saved to %s", path)

	errs := []error{runErr}
	if uri := viper.GetString("s3_uri"); uri != "" {
		errs = append(errs, uploadRecord(ctx, uri, path, rec))
	}
	if viper.GetBool("publish") {
		errs = append(errs, publishRecord(ctx, rec))
	}
	return errors.Join(errs...)
}

func uploadRecord(ctx context.Context, uri, path string, rec *results.Record) error {
	up, err := newUploader(ctx, viper.GetString("s3_region"))
	if err != nil {
		return err
	}
	body, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	loc, err := up.Upload(ctx, uri, filepath.Base(path), body)
	if err != nil {
		return err
	}
	log.Printf("Uploaded results to %s", loc)
	return nil
}

func publishRecord(ctx context.Context, rec *results.Record) error {
	resp, err := newClient().PublishRun(ctx, rec)
	if err != nil {
		return fmt.Errorf("publish run: %w", err)
	}
	if resp.Created {
		log.Printf("Published run %s", resp.ID)
	} else {
		log.Printf("Run %s was already published", resp.ID)
	}
	return nil
}

func printPerf(w io.Writer, rec *results.Record, path string) error {
	switch getFormat() {
	case format.FormatJSON:
		return format.JSONTo(w, rec)
	case format.FormatCSV:
		return format.CSV(w,
			[]string{"model", "status", "successful_requests", "total_requests", "total_tokens_generated",
				"median_latency_s", "p90_latency_s", "p99_latency_s", "total_time_s", "raw_tps", "effective_tps"},
			[][]string{{
				rec.Model, rec.Status,
				strconv.Itoa(rec.SuccessfulRequests), strconv.Itoa(rec.TotalRequests), strconv.Itoa(rec.TotalTokensGenerated),
				format.PtrF64(rec.MedianLatencySeconds, 3), format.PtrF64(rec.P90LatencySeconds, 3), format.PtrF64(rec.P99LatencySeconds, 3),
				format.PtrF64(rec.TotalTimeSeconds, 3), format.PtrF64(rec.RawTPS, 2), format.PtrF64(rec.EffectiveTPS, 2),
			}},
		)
	}

	rows := [][]string{
		{"Model", rec.Model},
		{"Status", rec.Status},
		{"Requests", fmt.Sprintf("%d/%d succeeded", rec.SuccessfulRequests, rec.TotalRequests)},
		{"Tokens generated", strconv.Itoa(rec.TotalTokensGenerated)},
		{"Median latency", format.PtrF64(rec.MedianLatencySeconds, 3) + " s"},
		{"P90 latency", format.PtrF64(rec.P90LatencySeconds, 3) + " s"},
		{"P99 latency", format.PtrF64(rec.P99LatencySeconds, 3) + " s"},
		{"Total elapsed", format.PtrF64(rec.TotalTimeSeconds, 3) + " s"},
		{"Raw throughput", format.PtrF64(rec.RawTPS, 2) + " tok/s"},
		{"Effective throughput", format.PtrF64(rec.EffectiveTPS, 2) + " tok/s"},
	}
	if rec.EstimatedTokenSamples > 0 {
		rows = append(rows, []string{"Estimated token counts", fmt.Sprintf("%d of %d samples", rec.EstimatedTokenSamples, rec.SuccessfulRequests)})
	}
	if rec.Error != "" {
		rows = append(rows, []string{"Error", rec.Error})
	}
	rows = append(rows, []string{"Results file", path})
	format.TableTo(w, []string{"Metric", "Value"}, rows)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
