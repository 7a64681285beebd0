package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/accelbench/vllmbench/cmd/cli/format"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show one published benchmark run",
	Long: `Fetch a run from the results API and print its metrics.

Examples:
  vllmbench status 6f1c2a9e-0000-4000-8000-000000000001
  vllmbench status 6f1c2a9e-0000-4000-8000-000000000001 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	run, err := newClient().GetRun(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if getFormat() == format.FormatJSON {
		return format.JSONTo(out, run)
	}

	fmt.Fprintf(out, "Run ID:     %s\n", run.ID)
	fmt.Fprintf(out, "Model:      %s\n", run.Model)
	fmt.Fprintf(out, "Endpoint:   %s\n", run.Endpoint)
	fmt.Fprintf(out, "Status:     %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", run.Error)
	}
	if run.StartedAt != nil {
		fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if run.CompletedAt != nil {
		fmt.Fprintf(out, "Completed:  %s\n", run.CompletedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}

	if run.Status != "ok" {
		return nil
	}

	fmt.Fprintln(out, "\nKey Metrics:")
	format.TableTo(out,
		[]string{"Metric", "Value"},
		[][]string{
			{"Requests", fmt.Sprintf("%d/%d succeeded", run.SuccessfulRequests, run.TotalRequests)},
			{"Tokens generated", fmt.Sprintf("%d", run.TotalTokensGenerated)},
			{"Latency p50", format.PtrF64(run.MedianLatencySeconds, 3) + " s"},
			{"Latency p90", format.PtrF64(run.P90LatencySeconds, 3) + " s"},
			{"Latency p99", format.PtrF64(run.P99LatencySeconds, 3) + " s"},
			{"Latency min", format.PtrF64(run.MinLatencySeconds, 3) + " s"},
			{"Latency max", format.PtrF64(run.MaxLatencySeconds, 3) + " s"},
			{"Total elapsed", format.PtrF64(run.TotalTimeSeconds, 3) + " s"},
			{"Throughput (raw)", format.PtrF64(run.RawTPS, 2) + " tok/s"},
			{"Throughput (effective)", format.PtrF64(run.EffectiveTPS, 2) + " tok/s"},
			{"Estimated token samples", fmt.Sprintf("%d", run.EstimatedTokenSamples)},
		},
	)
	return nil
}
