package cmd

import (
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/accelbench/vllmbench/cmd/cli/format"
	"github.com/accelbench/vllmbench/internal/quality"
	"github.com/accelbench/vllmbench/internal/results"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <quality.json> <perf.json>",
	Short: "Print one summary line combining quality scores and throughput",
	Long: `Read an lm-evaluation-harness result file and a performance record and print
one line per model with each task score, its pass mark, effective and raw
throughput, and median latency. The model name comes from the quality file
name.

Examples:
  vllmbench summarize results/qwen2_5_32b.json results/perf_qwen2_5_32b.json
  vllmbench summarize results/qwen2_5_32b.json results/perf_qwen2_5_32b.json -o json`,
	Args: cobra.ExactArgs(2),
	RunE: runSummarize,
}

func init() {
	RootCmd.AddCommand(summarizeCmd)
}

// Summary is the combined view of one model's quality and performance.
type Summary struct {
	Model                string              `json:"model"`
	Quality              []quality.TaskCheck `json:"quality"`
	PerfStatus           string              `json:"perf_status"`
	EffectiveTPS         *float64            `json:"effective_tps,omitempty"`
	RawTPS               *float64            `json:"raw_tps,omitempty"`
	MedianLatencySeconds *float64            `json:"median_latency_s,omitempty"`
}

// buildSummary loads both files. Either one being unreadable is an error.
func buildSummary(qualityPath, perfPath string, th quality.Thresholds) (*Summary, error) {
	model := results.ModelFromFilename(qualityPath)

	qrec, err := quality.LoadFile(qualityPath)
	if err != nil {
		return nil, fmt.Errorf("[%s] could not generate summary: %w", model, err)
	}
	if qrec.Results == nil {
		log.Printf("WARN: [%s] 'results' key missing in %s", model, qualityPath)
	}
	prec, err := results.Load(perfPath)
	if err != nil {
		return nil, fmt.Errorf("[%s] could not generate summary: %w", model, err)
	}

	s := &Summary{
		Model:      model,
		Quality:    quality.Check(model, qrec, th),
		PerfStatus: prec.Status,
		RawTPS:     prec.RawTPS,
	}
	if prec.OK() {
		s.EffectiveTPS = prec.Throughput()
		s.MedianLatencySeconds = prec.MedianLatencySeconds
	} else {
		s.RawTPS = nil
	}
	return s, nil
}

// qualityText renders "task score mark" for every check.
func (s *Summary) qualityText(mark func(bool) string) string {
	parts := make([]string, len(s.Quality))
	for i, c := range s.Quality {
		score := "--"
		if c.Score != nil {
			score = fmt.Sprintf("%.2f", *c.Score)
		}
		parts[i] = fmt.Sprintf("%s %s %s", c.Task, score, mark(c.Passed))
	}
	return strings.Join(parts, "  ")
}

func (s *Summary) perfText() string {
	tps := "-- tok/s"
	if s.EffectiveTPS != nil {
		tps = fmt.Sprintf("%.1f tok/s", *s.EffectiveTPS)
		if s.RawTPS != nil {
			tps += fmt.Sprintf(" (raw %.1f)", *s.RawTPS)
		}
	}
	p50 := "p50 --s"
	if s.MedianLatencySeconds != nil {
		p50 = fmt.Sprintf("p50 %.2fs", *s.MedianLatencySeconds)
	}
	return tps + "  " + p50
}

// Line renders the summary as one aligned line. Padding is computed on the
// uncolored text so escape codes do not skew the columns.
func (s *Summary) Line(mark func(bool) string) string {
	plain := s.qualityText(plainMark)
	pad := 45 - utf8.RuneCountInString(plain)
	if pad < 0 {
		pad = 0
	}
	return fmt.Sprintf("%-15s %s%s %s", s.Model, s.qualityText(mark), strings.Repeat(" ", pad), s.perfText())
}

func plainMark(pass bool) string {
	if pass {
		return "✓"
	}
	return "✗"
}

func runSummarize(cmd *cobra.Command, args []string) error {
	th, err := thresholds()
	if err != nil {
		return err
	}
	s, err := buildSummary(args[0], args[1], th)
	if err != nil {
		return err
	}
	return printSummary(cmd.OutOrStdout(), s)
}

func printSummary(w io.Writer, s *Summary) error {
	switch getFormat() {
	case format.FormatJSON:
		return format.JSONTo(w, s)
	case format.FormatCSV:
		headers := []string{"model"}
		row := []string{s.Model}
		for _, c := range s.Quality {
			headers = append(headers, c.Task, c.Task+"_passed")
			row = append(row, format.PtrF64(c.Score, 4), fmt.Sprintf("%t", c.Passed))
		}
		headers = append(headers, "perf_status", "effective_tps", "raw_tps", "median_latency_s")
		row = append(row, s.PerfStatus,
			format.PtrF64(s.EffectiveTPS, 2), format.PtrF64(s.RawTPS, 2), format.PtrF64(s.MedianLatencySeconds, 3))
		return format.CSV(w, headers, [][]string{row})
	}
	_, err := fmt.Fprintln(w, s.Line(format.Mark))
	return err
}
