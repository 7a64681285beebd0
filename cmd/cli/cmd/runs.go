package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/accelbench/vllmbench/cmd/cli/format"
	"github.com/accelbench/vllmbench/internal/database"
)

var (
	runsModel  string
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List published benchmark runs",
	Long: `List runs stored in the results API, newest first.

Examples:
  vllmbench runs
  vllmbench runs --model qwen --status ok --limit 10
  vllmbench runs -o csv`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsModel, "model", "", "filter by model (substring match)")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status: ok or failed")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 0, "max rows to return (server default 50)")
	RootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	items, err := newClient().ListRuns(commandContext(cmd), database.RunFilter{
		Model:  runsModel,
		Status: runsStatus,
		Limit:  runsLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch getFormat() {
	case format.FormatJSON:
		return format.JSONTo(out, items)
	case format.FormatCSV:
		rows := make([][]string, len(items))
		for i, it := range items {
			rows[i] = []string{it.ID, it.Model, it.Status,
				strconv.Itoa(it.SuccessfulRequests), strconv.Itoa(it.TotalRequests),
				format.PtrF64(it.MedianLatencySeconds, 3), format.PtrF64(it.EffectiveTPS, 2),
				it.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}
		}
		return format.CSV(out,
			[]string{"id", "model", "status", "successful_requests", "total_requests", "median_latency_s", "effective_tps", "created_at"},
			rows)
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{
			shortID(it.ID),
			it.Model,
			it.Status,
			fmt.Sprintf("%d/%d", it.SuccessfulRequests, it.TotalRequests),
			format.PtrF64(it.MedianLatencySeconds, 2),
			format.PtrF64(it.EffectiveTPS, 1),
			it.CreatedAt.Format("2006-01-02 15:04"),
		}
	}
	format.TableTo(out, []string{"ID", "Model", "Status", "OK", "p50 (s)", "tok/s", "Created"}, rows)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
