package services

import (
	"strings"
	"unicode/utf8"

	"examgen/internal/models"
)

// QualityEvaluator scores questions on cheap structural signals: text length,
// option distinctness, option-length balance, explanation presence, and
// correct-option validity. It is pure and makes no network calls. The score
// is a structural smell detector, not a correctness check — it cannot tell a
// factually wrong question from a right one.
type QualityEvaluator struct {
	threshold int
}

// QualityReport carries per-question scores and the positions of weak items.
type QualityReport struct {
	Scores      []int
	WeakIndices []int
}

// NewQualityEvaluator creates an evaluator. Questions scoring strictly below
// threshold are flagged weak.
func NewQualityEvaluator(threshold int) *QualityEvaluator {
	return &QualityEvaluator{threshold: threshold}
}

// Evaluate scores each question in order. Scores are always in [1, 10], and
// WeakIndices holds exactly the zero-based positions whose score fell below
// the threshold.
func (e *QualityEvaluator) Evaluate(questions []models.Question) QualityReport {
	report := QualityReport{
		Scores:      make([]int, len(questions)),
		WeakIndices: []int{},
	}
	for i, q := range questions {
		score := e.Score(q)
		report.Scores[i] = score
		if score < e.threshold {
			report.WeakIndices = append(report.WeakIndices, i)
		}
	}
	return report
}

// Score rates one question from 1 to 10, starting at 10 and subtracting
// penalties with a floor of 1.
func (e *QualityEvaluator) Score(q models.Question) int {
	score := 10

	// Short text penalties are mutually exclusive, stricter threshold wins.
	textLen := utf8.RuneCountInString(q.Text)
	switch {
	case textLen < 20:
		score -= 3
	case textLen < 40:
		score -= 1
	}

	if distinctOptionCount(q) < 4 {
		score -= 2
	}

	if optionLengthsUnbalanced(q) {
		score -= 1
	}

	if utf8.RuneCountInString(q.Explanation) < 10 {
		score -= 1
	}

	if !q.CorrectOption.IsValid() {
		score -= 2
	}

	if score < 1 {
		score = 1
	}
	return score
}

// distinctOptionCount counts case- and whitespace-insensitively distinct
// options among the four.
func distinctOptionCount(q models.Question) int {
	seen := make(map[string]struct{}, 4)
	for _, opt := range q.Options() {
		seen[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	return len(seen)
}

// optionLengthsUnbalanced reports whether the variance of the option lengths
// exceeds 0.8x their mean, a common tell of one wildly-off-length distractor.
func optionLengthsUnbalanced(q models.Question) bool {
	opts := q.Options()
	lengths := make([]float64, len(opts))
	var sum float64
	for i, opt := range opts {
		lengths[i] = float64(utf8.RuneCountInString(opt))
		sum += lengths[i]
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return false
	}

	var variance float64
	for _, l := range lengths {
		d := l - mean
		variance += d * d
	}
	variance /= float64(len(lengths))

	return variance > 0.8*mean
}
