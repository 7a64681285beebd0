package database

import (
	"context"
	"fmt"
	"strings"
)

// ListRuns returns runs matching the given filter, newest first.
func (r *Repository) ListRuns(ctx context.Context, f RunFilter) ([]RunListItem, error) {
	var (
		conditions []string
		args       []any
		argIdx     int
	)

	if f.Status != "" {
		argIdx++
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, f.Status)
	}
	if f.Model != "" {
		argIdx++
		conditions = append(conditions, fmt.Sprintf("model ILIKE $%d", argIdx))
		args = append(args, "%"+f.Model+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Pagination.
	argIdx++
	limitClause := fmt.Sprintf("LIMIT $%d", argIdx)
	args = append(args, listLimit(f))

	offsetClause := ""
	if f.Offset > 0 {
		argIdx++
		offsetClause = fmt.Sprintf("OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	query := fmt.Sprintf(`
		SELECT id, model, status, successful_requests, total_requests,
		       median_latency_s, effective_tps, created_at
		FROM perf_runs
		%s
		ORDER BY created_at DESC
		%s %s
	`, where, limitClause, offsetClause)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var items []RunListItem
	for rows.Next() {
		var item RunListItem
		err := rows.Scan(
			&item.ID, &item.Model, &item.Status, &item.SuccessfulRequests, &item.TotalRequests,
			&item.MedianLatencySeconds, &item.EffectiveTPS, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteRun removes a run.
func (r *Repository) DeleteRun(ctx context.Context, runID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM perf_runs WHERE id = $1`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
