package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examgen/internal/models"
)

func TestProgressRegistry_PublishAndGet(t *testing.T) {
	registry := NewProgressRegistry()

	registry.Publish("run-1", models.GenerationProgress{Step: models.StepGenerating, Percent: 20})
	registry.Publish("run-1", models.GenerationProgress{Step: models.StepQualityCheck, Percent: 60})

	progress, ok := registry.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, models.StepQualityCheck, progress.Step)
	assert.Equal(t, 60, progress.Percent)
}

func TestProgressRegistry_UnknownRun(t *testing.T) {
	registry := NewProgressRegistry()
	_, ok := registry.Get("nope")
	assert.False(t, ok)
}

func TestProgressRegistry_EmptyRunIDIgnored(t *testing.T) {
	registry := NewProgressRegistry()
	registry.Publish("", models.GenerationProgress{Step: models.StepGenerating, Percent: 20})
	_, ok := registry.Get("")
	assert.False(t, ok)
}

func TestProgressRegistry_ExpiredEntriesPruned(t *testing.T) {
	registry := NewProgressRegistry()
	registry.runs["stale"] = progressEntry{
		progress: models.GenerationProgress{Step: models.StepComplete, Percent: 100},
		updated:  time.Now().Add(-2 * progressTTL),
	}

	_, ok := registry.Get("stale")
	assert.False(t, ok, "expired entries should not be returned")

	registry.Publish("fresh", models.GenerationProgress{Step: models.StepGenerating, Percent: 20})
	registry.mu.RLock()
	_, stillThere := registry.runs["stale"]
	registry.mu.RUnlock()
	assert.False(t, stillThere, "publish should prune expired entries")
}
