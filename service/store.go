package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/faycaldjilali/sorabo/config"
	"github.com/faycaldjilali/sorabo/model"
)

// RunStore is an in-memory store for pipeline runs
// In production, this should be replaced with a database
type RunStore struct {
	runs    map[string]*model.Run
	mu      sync.RWMutex
	maxRuns int // Maximum runs to keep, 0 = unlimited
}

var (
	globalStore *RunStore
	storeOnce   sync.Once
)

// InitRunStore initializes the global run store with configuration
func InitRunStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		maxRuns := cfg.MaxRuns
		if maxRuns < 0 {
			maxRuns = 0
		}
		globalStore = &RunStore{
			runs:    make(map[string]*model.Run),
			maxRuns: maxRuns,
		}
		slog.Info("run store initialized", "max_runs", maxRuns)
	})
}

// GetRunStore returns the global run store
func GetRunStore() *RunStore {
	if globalStore == nil {
		// Fallback initialization with default settings
		globalStore = &RunStore{
			runs:    make(map[string]*model.Run),
			maxRuns: 100, // Default: keep 100 runs
		}
	}
	return globalStore
}

func (s *RunStore) Save(run *model.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.UpdatedAt = time.Now()
	s.runs[run.ID] = run

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

// Get returns a snapshot of the run. Stage tables are shared with the
// store but are never mutated once set, so reading them is safe.
func (s *RunStore) Get(id string) *model.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil
	}
	snapshot := *run
	return &snapshot
}

// GetByTenant returns the tenant's runs, newest first.
func (s *RunStore) GetByTenant(tenant string) []*model.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Run
	for _, r := range s.runs {
		if r.Tenant == tenant {
			snapshot := *r
			result = append(result, &snapshot)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *RunStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

func (s *RunStore) UpdateStatus(id, status string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		r.Status = status
		r.ErrorMsg = errMsg
		r.UpdatedAt = time.Now()
	}
}

func (s *RunStore) UpdateProgress(id string, progress model.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		r.Progress = progress
		r.UpdatedAt = time.Now()
	}
}

func (s *RunStore) SetKeywords(id string, keywords []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		r.Keywords = keywords
		r.UpdatedAt = time.Now()
	}
}

// SetStageTable stores one stage's output on the run. Tables must not be
// mutated after they are handed to the store.
func (s *RunStore) SetStageTable(id, stage string, table *model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return
	}
	switch stage {
	case model.StageRaw:
		r.Raw = table
	case model.StageFiltered:
		r.Filtered = table
	case model.StageCleaned:
		r.Cleaned = table
	case model.StageScanned:
		r.Scanned = table
	}
	r.UpdatedAt = time.Now()
}

// cleanupIfNeeded removes oldest runs if store exceeds maxRuns
// Must be called with lock held
func (s *RunStore) cleanupIfNeeded() {
	if s.maxRuns <= 0 {
		return // Unlimited
	}

	if len(s.runs) <= s.maxRuns {
		return
	}

	// Sort runs by creation time
	runs := make([]*model.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	// Remove oldest runs
	removeCount := len(runs) - s.maxRuns
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old run",
			"run_id", runs[i].ID,
			"created_at", runs[i].CreatedAt,
		)
		delete(s.runs, runs[i].ID)
	}
}

// Count returns the number of runs in the store
func (s *RunStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
