package services

import (
	"strings"

	"github.com/google/uuid"

	"examgen/internal/models"
)

// QuestionNormalizer converts loosely-typed parsed objects into Question
// values. It is total: any object, including an empty one, normalizes to a
// Question without error. Missing fields fall back to snake_case variants and
// then to defaults, and all text fields pass through math markup cleanup.
type QuestionNormalizer struct{}

// NewQuestionNormalizer creates a question normalizer.
func NewQuestionNormalizer() *QuestionNormalizer {
	return &QuestionNormalizer{}
}

// Normalize converts one parsed object into a Question. pos is the zero-based
// position in the batch; the question's Index is pos+1.
func (n *QuestionNormalizer) Normalize(raw map[string]interface{}, pos int) models.Question {
	difficulty := models.ParseDifficulty(stringField(raw, "difficulty"))

	mark := intField(raw, "mark")
	if mark <= 0 {
		mark = difficulty.DefaultMark()
	}

	correct := strings.ToUpper(firstString(raw, "correctOption", "correct_option"))
	correctOption := models.CorrectOption(correct)
	if !correctOption.IsValid() {
		correctOption = models.CorrectOptionA
	}

	return models.Question{
		ID:            uuid.New().String(),
		Index:         pos + 1,
		Text:          CleanMathMarkup(firstString(raw, "text", "question")),
		OptionA:       CleanMathMarkup(firstString(raw, "optionA", "option_a")),
		OptionB:       CleanMathMarkup(firstString(raw, "optionB", "option_b")),
		OptionC:       CleanMathMarkup(firstString(raw, "optionC", "option_c")),
		OptionD:       CleanMathMarkup(firstString(raw, "optionD", "option_d")),
		CorrectOption: correctOption,
		Difficulty:    difficulty,
		Mark:          mark,
		Explanation:   CleanMathMarkup(stringField(raw, "explanation")),
		NeedsImage:    boolField(raw, "needsImage") || boolField(raw, "needs_image"),
	}
}

// NormalizeBatch normalizes a whole parsed response in order.
func (n *QuestionNormalizer) NormalizeBatch(raw []map[string]interface{}) []models.Question {
	questions := make([]models.Question, 0, len(raw))
	for i, item := range raw {
		questions = append(questions, n.Normalize(item, i))
	}
	return questions
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := stringField(m, key); v != "" {
			return v
		}
	}
	return ""
}

// intField reads a numeric field. JSON numbers decode as float64, but
// integers are accepted too for hand-built maps in tests.
func intField(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func boolField(m map[string]interface{}, key string) bool {
	v, _ := m[key].(bool)
	return v
}
