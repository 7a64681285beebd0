package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides database operations for benchmark results.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with a connection pool.
func NewRepository(ctx context.Context, connString string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS perf_runs (
    id                      UUID PRIMARY KEY,
    model                   TEXT NOT NULL,
    endpoint                TEXT NOT NULL DEFAULT '',
    status                  TEXT NOT NULL,
    error                   TEXT NOT NULL DEFAULT '',
    total_requests          INTEGER NOT NULL DEFAULT 0,
    successful_requests     INTEGER NOT NULL DEFAULT 0,
    total_tokens_generated  INTEGER NOT NULL DEFAULT 0,
    estimated_token_samples INTEGER NOT NULL DEFAULT 0,
    median_latency_s        DOUBLE PRECISION,
    p90_latency_s           DOUBLE PRECISION,
    p99_latency_s           DOUBLE PRECISION,
    min_latency_s           DOUBLE PRECISION,
    max_latency_s           DOUBLE PRECISION,
    sum_latency_s           DOUBLE PRECISION,
    pause_s                 DOUBLE PRECISION,
    total_time_s            DOUBLE PRECISION,
    raw_tps                 DOUBLE PRECISION,
    effective_tps           DOUBLE PRECISION,
    wall_clock_s            DOUBLE PRECISION NOT NULL DEFAULT 0,
    started_at              TIMESTAMPTZ,
    completed_at            TIMESTAMPTZ,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS perf_runs_model_created_idx ON perf_runs (model, created_at DESC);
CREATE INDEX IF NOT EXISTS perf_runs_status_idx ON perf_runs (status);
`

// Migrate creates the schema if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// SaveRun inserts run. A run whose ID already exists is not overwritten.
// An empty ID is replaced with a fresh UUID.
func (r *Repository) SaveRun(ctx context.Context, run *PerfRun) (bool, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO perf_runs
		    (id, model, endpoint, status, error,
		     total_requests, successful_requests, total_tokens_generated, estimated_token_samples,
		     median_latency_s, p90_latency_s, p99_latency_s, min_latency_s, max_latency_s,
		     sum_latency_s, pause_s, total_time_s, raw_tps, effective_tps, wall_clock_s,
		     started_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING created_at`,
		run.ID, run.Model, run.Endpoint, run.Status, run.Error,
		run.TotalRequests, run.SuccessfulRequests, run.TotalTokensGenerated, run.EstimatedTokenSamples,
		run.MedianLatencySeconds, run.P90LatencySeconds, run.P99LatencySeconds, run.MinLatencySeconds, run.MaxLatencySeconds,
		run.SumLatencySeconds, run.PauseSeconds, run.TotalTimeSeconds, run.RawTPS, run.EffectiveTPS, run.WallClockSeconds,
		run.StartedAt, run.CompletedAt,
	).Scan(&run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert run: %w", err)
	}
	return true, nil
}

// GetRun returns a run by ID, or nil if not found.
func (r *Repository) GetRun(ctx context.Context, runID string) (*PerfRun, error) {
	var run PerfRun
	err := r.pool.QueryRow(ctx,
		`SELECT id, model, endpoint, status, error,
		        total_requests, successful_requests, total_tokens_generated, estimated_token_samples,
		        median_latency_s, p90_latency_s, p99_latency_s, min_latency_s, max_latency_s,
		        sum_latency_s, pause_s, total_time_s, raw_tps, effective_tps, wall_clock_s,
		        started_at, completed_at, created_at
		 FROM perf_runs WHERE id = $1`, runID,
	).Scan(&run.ID, &run.Model, &run.Endpoint, &run.Status, &run.Error,
		&run.TotalRequests, &run.SuccessfulRequests, &run.TotalTokensGenerated, &run.EstimatedTokenSamples,
		&run.MedianLatencySeconds, &run.P90LatencySeconds, &run.P99LatencySeconds, &run.MinLatencySeconds, &run.MaxLatencySeconds,
		&run.SumLatencySeconds, &run.PauseSeconds, &run.TotalTimeSeconds, &run.RawTPS, &run.EffectiveTPS, &run.WallClockSeconds,
		&run.StartedAt, &run.CompletedAt, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return &run, nil
}
