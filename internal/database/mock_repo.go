package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockRepo is an in-memory implementation of Repo for testing.
type MockRepo struct {
	mu    sync.Mutex
	runs  map[string]*PerfRun // keyed by run ID
	order map[string]int      // insertion sequence, for stable newest-first listing
	seq   int

	// SaveErr, when set, is returned by SaveRun.
	SaveErr error
}

// NewMockRepo creates a new MockRepo.
func NewMockRepo() *MockRepo {
	return &MockRepo{
		runs:  make(map[string]*PerfRun),
		order: make(map[string]int),
	}
}

// Count returns the number of stored runs (for test assertions).
func (m *MockRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func (m *MockRepo) SaveRun(_ context.Context, run *PerfRun) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return false, m.SaveErr
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, ok := m.runs[run.ID]; ok {
		return false, nil
	}
	m.seq++
	run.CreatedAt = time.Now()
	stored := *run
	m.runs[run.ID] = &stored
	m.order[run.ID] = m.seq
	return true, nil
}

func (m *MockRepo) GetRun(_ context.Context, runID string) (*PerfRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

// ListRuns returns runs matching the given filter, newest first.
func (m *MockRepo) ListRuns(_ context.Context, f RunFilter) ([]RunListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, run := range m.runs {
		if f.Status != "" && run.Status != f.Status {
			continue
		}
		if f.Model != "" && !strings.Contains(
			strings.ToLower(run.Model),
			strings.ToLower(f.Model),
		) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.order[ids[i]] > m.order[ids[j]] })

	if f.Offset > 0 && f.Offset < len(ids) {
		ids = ids[f.Offset:]
	} else if f.Offset >= len(ids) && f.Offset > 0 {
		return nil, nil
	}
	if limit := listLimit(f); len(ids) > limit {
		ids = ids[:limit]
	}

	var items []RunListItem
	for _, id := range ids {
		run := m.runs[id]
		items = append(items, RunListItem{
			ID:                   run.ID,
			Model:                run.Model,
			Status:               run.Status,
			SuccessfulRequests:   run.SuccessfulRequests,
			TotalRequests:        run.TotalRequests,
			MedianLatencySeconds: run.MedianLatencySeconds,
			EffectiveTPS:         run.EffectiveTPS,
			CreatedAt:            run.CreatedAt,
		})
	}
	return items, nil
}

// DeleteRun removes a run from the mock store.
func (m *MockRepo) DeleteRun(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	delete(m.runs, runID)
	delete(m.order, runID)
	return nil
}
