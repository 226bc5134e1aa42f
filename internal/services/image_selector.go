package services

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"examgen/internal/models"
)

// ImageSelector decides which questions receive a generated diagram. Auto
// mode is fully deterministic; percentage mode draws a uniform sample without
// replacement from the injected random source, so callers can seed it for
// reproducible runs.
type ImageSelector struct {
	triggerPhrases []string
	rng            *rand.Rand
}

// NewImageSelector creates a selector with the given Arabic trigger phrases
// and random source.
func NewImageSelector(triggerPhrases []string, rng *rand.Rand) *ImageSelector {
	return &ImageSelector{triggerPhrases: triggerPhrases, rng: rng}
}

// SelectIndices returns the zero-based indices of questions to augment, in
// ascending order. Auto mode picks every question whose text mentions a
// diagram trigger phrase or that carries the generator's needsImage hint.
// Percentage mode picks max(1, round(n×pct/100)) questions uniformly at
// random without replacement.
func (s *ImageSelector) SelectIndices(questions []models.Question, mode models.ImageMode, percentage int) []int {
	if len(questions) == 0 {
		return []int{}
	}

	if mode == models.ImageModePercentage {
		return s.selectByPercentage(len(questions), percentage)
	}
	return s.selectByTriggers(questions)
}

func (s *ImageSelector) selectByTriggers(questions []models.Question) []int {
	indices := []int{}
	for i, q := range questions {
		if q.NeedsImage || s.mentionsDiagram(q.Text) {
			indices = append(indices, i)
		}
	}
	return indices
}

func (s *ImageSelector) mentionsDiagram(text string) bool {
	for _, phrase := range s.triggerPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func (s *ImageSelector) selectByPercentage(total, percentage int) []int {
	count := int(math.Round(float64(total) * float64(percentage) / 100))
	if count < 1 {
		count = 1
	}
	if count > total {
		count = total
	}

	// Fisher-Yates shuffle, take the prefix.
	indices := make([]int, total)
	for i := range indices {
		indices[i] = i
	}
	s.rng.Shuffle(total, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	selected := indices[:count]
	sort.Ints(selected)
	return selected
}
