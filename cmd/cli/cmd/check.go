package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/accelbench/vllmbench/cmd/cli/format"
	"github.com/accelbench/vllmbench/internal/quality"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fail when any model's quality scores fall below their thresholds",
	Long: `Check every quality result file in the results directory (perf_* files are
skipped) against the task thresholds. Defaults are hellaswag 0.80,
arc_easy 0.75 and boolq 0.80; the config file may override them under
"thresholds". A missing results block, task, or score counts as a failure.

Set SKIP_TESTS=true or pass --skip to bypass the gate.

Examples:
  vllmbench check
  vllmbench check --results-dir /data/results -o json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("skip", false, "skip the quality gate (env SKIP_TESTS)")
	_ = viper.BindPFlag("skip", checkCmd.Flags().Lookup("skip"))
	RootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if viper.GetBool("skip") {
		fmt.Fprintln(out, "Quality gate skipped")
		return nil
	}
	th, err := thresholds()
	if err != nil {
		return err
	}

	dir := viper.GetString("results_dir")
	checks, gateErr := quality.Evaluate(commandContext(cmd), dir, th)
	var ge *quality.GateError
	if gateErr != nil && !errors.As(gateErr, &ge) {
		return gateErr
	}
	if len(checks) == 0 {
		fmt.Fprintf(out, "No quality results in %s, nothing to check\n", dir)
		return nil
	}
	if err := printChecks(out, checks); err != nil {
		return err
	}
	return gateErr
}

func printChecks(w io.Writer, checks []quality.TaskCheck) error {
	switch getFormat() {
	case format.FormatJSON:
		return format.JSONTo(w, checks)
	case format.FormatCSV:
		rows := make([][]string, len(checks))
		for i, c := range checks {
			rows[i] = []string{c.Model, c.Task, format.PtrF64(c.Score, 4),
				strconv.FormatFloat(c.Threshold, 'f', -1, 64), strconv.FormatBool(c.Passed), c.Reason}
		}
		return format.CSV(w, []string{"model", "task", "score", "threshold", "passed", "reason"}, rows)
	}

	rows := make([][]string, len(checks))
	for i, c := range checks {
		rows[i] = []string{c.Model, c.Task, format.PtrF64(c.Score, 3),
			fmt.Sprintf("%.2f", c.Threshold), format.Mark(c.Passed), c.Reason}
	}
	format.TableTo(w, []string{"Model", "Task", "Score", "Threshold", "Pass", "Reason"}, rows)
	return nil
}
