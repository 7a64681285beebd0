// Package quality reads lm-evaluation-harness result files and checks task
// scores against minimum thresholds.
package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/accelbench/vllmbench/internal/results"
)

// scoreKeys are tried in order when reading a task's accuracy.
var scoreKeys = []string{"acc,norm", "acc_norm,none", "acc", "acc,none"}

// defaultTaskOrder is the display order for the built-in tasks.
var defaultTaskOrder = []string{"hellaswag", "arc_easy", "boolq"}

// Thresholds maps a task name to its minimum passing score.
type Thresholds map[string]float64

// DefaultThresholds returns the built-in gate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		"hellaswag": 0.80,
		"arc_easy":  0.75,
		"boolq":     0.80,
	}
}

// Tasks returns the task names in display order: built-in tasks first, the
// rest alphabetically.
func (t Thresholds) Tasks() []string {
	var tasks []string
	seen := make(map[string]bool)
	for _, name := range defaultTaskOrder {
		if _, ok := t[name]; ok {
			tasks = append(tasks, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range t {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(tasks, extra...)
}

// Record is a quality-evaluation result file.
type Record struct {
	Results map[string]map[string]json.RawMessage `json:"results"`
}

// Score returns the accuracy reported for task. ok is false when the task
// or every accepted score key is missing or non-numeric.
func (r *Record) Score(task string) (score float64, ok bool) {
	if r == nil || r.Results == nil {
		return 0, false
	}
	metrics, found := r.Results[task]
	if !found {
		return 0, false
	}
	for _, key := range scoreKeys {
		raw, found := metrics[key]
		if !found {
			continue
		}
		if v, ok := parseScore(raw); ok {
			return v, true
		}
	}
	return 0, false
}

func parseScore(raw json.RawMessage) (float64, bool) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// LoadFile reads a quality record from path.
func LoadFile(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quality results: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode quality results %s: %w", path, err)
	}
	return &rec, nil
}

// DiscoverModels lists the models with a quality record in dir: every
// *.json file except performance records. A missing directory yields no
// models and no error.
func DiscoverModels(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var models []string
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), results.PerfPrefix) {
			continue
		}
		models = append(models, results.ModelFromFilename(m))
	}
	sort.Strings(models)
	return models, nil
}

// Loaded is the outcome of reading one model's record.
type Loaded struct {
	Model  string
	Record *Record
	Err    error
}

// maxParallelLoads bounds concurrent file reads in LoadAll.
const maxParallelLoads = 8

// LoadAll reads dir/<model>.json for every model concurrently. A file that
// cannot be read is reported in its Loaded.Err rather than aborting the
// others. The returned slice is in the same order as models.
func LoadAll(ctx context.Context, dir string, models []string) ([]Loaded, error) {
	out := make([]Loaded, len(models))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, model := range models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := LoadFile(filepath.Join(dir, model+".json"))
			out[i] = Loaded{Model: model, Record: rec, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
