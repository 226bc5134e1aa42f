package handlers

import (
	"sync"
	"time"

	"examgen/internal/models"
)

// progressTTL is how long a finished run's progress stays pollable.
const progressTTL = time.Hour

// ProgressRegistry holds the latest progress of generation runs, keyed by a
// caller-supplied run ID, so clients can poll while a generate request is in
// flight. Entries expire after progressTTL.
type ProgressRegistry struct {
	mu   sync.RWMutex
	runs map[string]progressEntry
}

type progressEntry struct {
	progress models.GenerationProgress
	updated  time.Time
}

// NewProgressRegistry creates an empty registry.
func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{runs: make(map[string]progressEntry)}
}

// Publish records the latest progress for a run and prunes expired entries.
func (r *ProgressRegistry) Publish(runID string, p models.GenerationProgress) {
	if runID == "" {
		return
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.runs {
		if now.Sub(entry.updated) > progressTTL {
			delete(r.runs, id)
		}
	}
	r.runs[runID] = progressEntry{progress: p, updated: now}
}

// Get returns the latest progress for a run.
func (r *ProgressRegistry) Get(runID string) (models.GenerationProgress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.runs[runID]
	if !ok || time.Since(entry.updated) > progressTTL {
		return models.GenerationProgress{}, false
	}
	return entry.progress, true
}
