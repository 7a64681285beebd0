package database

import "context"

// Repo defines the interface for benchmark result storage.
// The concrete *Repository satisfies this interface. Use this interface
// as a dependency in consumers to enable testing with mocks.
type Repo interface {
	// SaveRun stores run. If a run with the same ID already exists it is
	// left unchanged and created is false.
	SaveRun(ctx context.Context, run *PerfRun) (created bool, err error)
	GetRun(ctx context.Context, runID string) (*PerfRun, error)
	ListRuns(ctx context.Context, f RunFilter) ([]RunListItem, error)
	DeleteRun(ctx context.Context, runID string) error
}

// Compile-time check that *Repository implements Repo.
var _ Repo = (*Repository)(nil)
