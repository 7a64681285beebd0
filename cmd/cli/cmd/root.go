package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/accelbench/vllmbench/cmd/cli/client"
	"github.com/accelbench/vllmbench/cmd/cli/format"
	"github.com/accelbench/vllmbench/internal/bench"
	"github.com/accelbench/vllmbench/internal/quality"
	"github.com/accelbench/vllmbench/internal/results"
)

// Exit codes returned by the CLI.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitNoSuccess    = 2
	ExitWriteFailure = 3
)

var cfgFile string

// RootCmd is the top-level CLI command.
var RootCmd = &cobra.Command{
	Use:   "vllmbench",
	Short: "vllmbench measures LLM serving latency and throughput and gates model quality",
	Long: `vllmbench sends a fixed prompt to an OpenAI-compatible completions endpoint,
one request at a time, and reports median latency plus raw and effective
token throughput. It can also summarize those results next to
lm-evaluation-harness scores and enforce minimum quality thresholds.

Every flag can also be set in a config file (--config) or through the
environment (VLLMBENCH_<FLAG>, plus ENGINE for the model and SKIP_TESTS for
the quality gate).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./vllmbench.yaml if present)")
	RootCmd.PersistentFlags().String("api-url", "http://localhost:8080", "results API base URL")
	RootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json, csv")
	RootCmd.PersistentFlags().String("results-dir", results.DefaultDir, "directory holding result files")

	_ = viper.BindPFlag("api_url", RootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("output", RootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("results_dir", RootCmd.PersistentFlags().Lookup("results-dir"))

	setDefaults()
}

// setDefaults registers defaults and environment bindings. It is safe to
// call again after viper.Reset.
func setDefaults() {
	viper.SetEnvPrefix("VLLMBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("model", "VLLMBENCH_MODEL", "ENGINE")
	_ = viper.BindEnv("skip", "VLLMBENCH_SKIP", "SKIP_TESTS")
	_ = viper.BindEnv("api_key", "VLLMBENCH_API_KEY", "OPENAI_API_KEY")

	d := bench.DefaultConfig()
	viper.SetDefault("api_url", "http://localhost:8080")
	viper.SetDefault("output", string(format.FormatTable))
	viper.SetDefault("results_dir", results.DefaultDir)
	viper.SetDefault("url", d.EndpointURL)
	viper.SetDefault("model", d.ModelName)
	viper.SetDefault("prompt", d.Prompt)
	viper.SetDefault("max_tokens", d.MaxTokens)
	viper.SetDefault("temperature", d.Temperature)
	viper.SetDefault("requests", d.NumRequests)
	viper.SetDefault("pause", d.InterRequestPause)
	viper.SetDefault("timeout", d.RequestTimeout)
	viper.SetDefault("api", string(d.API))
}

// loadConfig reads the config file named by --config, or ./vllmbench.yaml
// when present. A missing default file is not an error; a missing explicit
// file is.
func loadConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("vllmbench")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func newClient() *client.Client {
	return client.New(viper.GetString("api_url"))
}

func getFormat() format.OutputFormat {
	return format.Parse(viper.GetString("output"))
}

// thresholds returns the quality gate, letting the config file override or
// extend the built-in task thresholds.
func thresholds() (quality.Thresholds, error) {
	th := quality.DefaultThresholds()
	var custom map[string]float64
	if err := viper.UnmarshalKey("thresholds", &custom); err != nil {
		return nil, fmt.Errorf("invalid thresholds in config: %w", err)
	}
	for task, v := range custom {
		th[task] = v
	}
	return th, nil
}

// ExitCode maps an error returned by a command onto the process exit code.
func ExitCode(err error) int {
	var werr *results.WriteError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, bench.ErrNoSuccessfulRequests):
		return ExitNoSuccess
	case errors.As(err, &werr):
		return ExitWriteFailure
	default:
		return ExitError
	}
}
