package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examgen/internal/models"
)

func newTestPromptBuilder(t *testing.T) *PromptBuilder {
	t.Helper()
	b, err := NewPromptBuilder()
	require.NoError(t, err)
	return b
}

func TestPromptBuilder_BuildGenerationPrompt(t *testing.T) {
	b := newTestPromptBuilder(t)
	examCfg := baseExamConfig()

	t.Run("description only", func(t *testing.T) {
		prompt, err := b.BuildGenerationPrompt(examCfg, models.GenerationConfig{QuestionCount: 5}, "", false)
		require.NoError(t, err)

		assert.Contains(t, prompt.System, "LaTeX")
		assert.Contains(t, prompt.User, examCfg.Description)
		assert.Contains(t, prompt.User, "فيزياء")
		assert.Contains(t, prompt.User, "إنشاء 5 سؤال")
		assert.NotContains(t, prompt.User, "المصدر الأساسي")
	})

	t.Run("document is primary source", func(t *testing.T) {
		prompt, err := b.BuildGenerationPrompt(examCfg, models.GenerationConfig{QuestionCount: 3}, "النص المستخرج من الملف", false)
		require.NoError(t, err)

		assert.Contains(t, prompt.User, "النص المستخرج من الملف")
		assert.Contains(t, prompt.User, "المصدر الأساسي")
		// The description rides along as supplementary notes.
		assert.Contains(t, prompt.User, "ملاحظات إضافية")
		assert.Contains(t, prompt.User, examCfg.Description)
	})

	t.Run("document without description", func(t *testing.T) {
		cfg := examCfg
		cfg.Description = ""
		prompt, err := b.BuildGenerationPrompt(cfg, models.GenerationConfig{QuestionCount: 3}, "النص المستخرج", false)
		require.NoError(t, err)
		assert.Contains(t, prompt.User, "المصدر الأساسي")
		assert.NotContains(t, prompt.User, "ملاحظات إضافية")
	})

	t.Run("custom prompt lands in system half", func(t *testing.T) {
		gen := models.GenerationConfig{QuestionCount: 2, CustomPrompt: "ركز على المسائل الحسابية"}
		prompt, err := b.BuildGenerationPrompt(examCfg, gen, "", false)
		require.NoError(t, err)
		assert.Contains(t, prompt.System, "ركز على المسائل الحسابية")
	})

	t.Run("strict retry adds JSON-only reminder", func(t *testing.T) {
		relaxed, err := b.BuildGenerationPrompt(examCfg, models.GenerationConfig{QuestionCount: 2}, "", false)
		require.NoError(t, err)
		strict, err := b.BuildGenerationPrompt(examCfg, models.GenerationConfig{QuestionCount: 2}, "", true)
		require.NoError(t, err)

		assert.NotContains(t, relaxed.User, "أعد JSON فقط")
		assert.Contains(t, strict.User, "أعد JSON فقط")
	})

	t.Run("deterministic", func(t *testing.T) {
		gen := models.GenerationConfig{QuestionCount: 7, CustomPrompt: "توجيه"}
		first, err := b.BuildGenerationPrompt(examCfg, gen, "نص المصدر", false)
		require.NoError(t, err)
		second, err := b.BuildGenerationPrompt(examCfg, gen, "نص المصدر", false)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestPromptBuilder_DifficultyClause(t *testing.T) {
	b := newTestPromptBuilder(t)
	examCfg := baseExamConfig()

	t.Run("single-level modes", func(t *testing.T) {
		tests := []struct {
			mode     models.DifficultyMode
			expected string
		}{
			{models.DifficultyModeAllEasy, "سهلة (EASY)"},
			{models.DifficultyModeAllMedium, "متوسطة (MEDIUM)"},
			{models.DifficultyModeAllHard, "صعبة (HARD)"},
		}
		for _, tt := range tests {
			gen := models.GenerationConfig{
				QuestionCount: 3,
				Difficulty:    models.DifficultySettings{Mode: tt.mode},
			}
			prompt, err := b.BuildGenerationPrompt(examCfg, gen, "", false)
			require.NoError(t, err)
			assert.Contains(t, prompt.User, tt.expected)
		}
	})

	t.Run("mixed mode renders percentages verbatim", func(t *testing.T) {
		gen := models.GenerationConfig{
			QuestionCount: 10,
			Difficulty: models.DifficultySettings{
				Mode:          models.DifficultyModeMixed,
				EasyPercent:   30,
				MediumPercent: 50,
				HardPercent:   20,
			},
		}
		prompt, err := b.BuildGenerationPrompt(examCfg, gen, "", false)
		require.NoError(t, err)
		assert.Contains(t, prompt.User, "(EASY): 30%")
		assert.Contains(t, prompt.User, "(MEDIUM): 50%")
		assert.Contains(t, prompt.User, "(HARD): 20%")
	})

	t.Run("mixed percentages are not renormalized", func(t *testing.T) {
		// The configuration layer owns the sums-to-100 invariant; the
		// builder renders whatever it is handed.
		gen := models.GenerationConfig{
			QuestionCount: 10,
			Difficulty: models.DifficultySettings{
				Mode:          models.DifficultyModeMixed,
				EasyPercent:   33,
				MediumPercent: 33,
				HardPercent:   33,
			},
		}
		prompt, err := b.BuildGenerationPrompt(examCfg, gen, "", false)
		require.NoError(t, err)
		assert.Contains(t, prompt.User, "(EASY): 33%")
	})
}

func TestPromptBuilder_BuildRegenerationPrompt(t *testing.T) {
	b := newTestPromptBuilder(t)

	weak := []models.Question{
		{
			Index:      2,
			Text:       "سؤال ضعيف عن القوة",
			OptionA:    "خيار أ يجب ألا يظهر",
			OptionB:    "خيار ب",
			OptionC:    "خيار ج",
			OptionD:    "خيار د",
			Difficulty: models.DifficultyHard,
		},
		{
			Index:      5,
			Text:       "سؤال ضعيف عن الشحنة",
			Difficulty: models.DifficultyEasy,
		},
	}
	rctx := RegenerationContext{Title: "اختبار", Subject: "فيزياء", Grade: "12", CustomPrompt: "اجعلها تطبيقية"}

	prompt, err := b.BuildRegenerationPrompt(weak, rctx)
	require.NoError(t, err)

	assert.Contains(t, prompt.User, "سؤال ضعيف عن القوة")
	assert.Contains(t, prompt.User, "سؤال ضعيف عن الشحنة")
	assert.Contains(t, prompt.User, "HARD")
	assert.Contains(t, prompt.User, "سؤال 1")
	assert.Contains(t, prompt.User, "سؤال 2")
	assert.Contains(t, prompt.User, "اجعلها تطبيقية")

	// Condensed by design: the original options never reach the prompt.
	assert.NotContains(t, prompt.User, "خيار أ يجب ألا يظهر")

	assert.Contains(t, prompt.System, "تحسين")
}
