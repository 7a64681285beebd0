package quality

import (
	"context"
	"fmt"
	"strings"
)

// TaskCheck is the verdict for one model and task.
type TaskCheck struct {
	Model     string   `json:"model"`
	Task      string   `json:"task"`
	Score     *float64 `json:"score,omitempty"`
	Threshold float64  `json:"threshold"`
	Passed    bool     `json:"passed"`
	Reason    string   `json:"reason,omitempty"`
}

// Check evaluates rec against every threshold. A missing results block,
// task, or score fails the task.
func Check(model string, rec *Record, th Thresholds) []TaskCheck {
	tasks := th.Tasks()
	checks := make([]TaskCheck, 0, len(tasks))
	for _, task := range tasks {
		c := TaskCheck{Model: model, Task: task, Threshold: th[task]}
		switch {
		case rec == nil || rec.Results == nil:
			c.Reason = fmt.Sprintf("'results' key missing in %s.json", model)
		case rec.Results[task] == nil:
			c.Reason = fmt.Sprintf("task %q missing", task)
		default:
			score, ok := rec.Score(task)
			if !ok {
				c.Reason = fmt.Sprintf("accuracy score missing for task %q", task)
				break
			}
			c.Score = &score
			c.Passed = score >= c.Threshold
			if !c.Passed {
				c.Reason = fmt.Sprintf("score %.3f < threshold %.3f", score, c.Threshold)
			}
		}
		checks = append(checks, c)
	}
	return checks
}

// GateError lists every failed check.
type GateError struct {
	Failures []TaskCheck
}

func (e *GateError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s/%s: %s", f.Model, f.Task, f.Reason)
	}
	return fmt.Sprintf("quality gate failed for %d check(s): %s", len(e.Failures), strings.Join(parts, "; "))
}

// Evaluate loads every quality record in dir and checks it against th. It
// returns all checks and, when any failed, a *GateError. An empty or
// missing directory has nothing to check and passes.
func Evaluate(ctx context.Context, dir string, th Thresholds) ([]TaskCheck, error) {
	models, err := DiscoverModels(dir)
	if err != nil {
		return nil, err
	}
	loaded, err := LoadAll(ctx, dir, models)
	if err != nil {
		return nil, err
	}

	var (
		checks   []TaskCheck
		failures []TaskCheck
	)
	for _, l := range loaded {
		var mc []TaskCheck
		if l.Err != nil {
			for _, task := range th.Tasks() {
				mc = append(mc, TaskCheck{Model: l.Model, Task: task, Threshold: th[task], Reason: l.Err.Error()})
			}
		} else {
			mc = Check(l.Model, l.Record, th)
		}
		for _, c := range mc {
			if !c.Passed {
				failures = append(failures, c)
			}
		}
		checks = append(checks, mc...)
	}
	if len(failures) > 0 {
		return checks, &GateError{Failures: failures}
	}
	return checks, nil
}
