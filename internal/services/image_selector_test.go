package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examgen/internal/config"
	"examgen/internal/models"
)

func newTestImageSelector(seed int64) *ImageSelector {
	return NewImageSelector(config.DefaultImageTriggerPhrases(), rand.New(rand.NewSource(seed)))
}

func questionWithText(text string) models.Question {
	return models.Question{Text: text}
}

func TestImageSelector_AutoMode(t *testing.T) {
	s := newTestImageSelector(1)

	t.Run("trigger phrase in text", func(t *testing.T) {
		questions := []models.Question{
			questionWithText("احسب القوة المؤثرة على الشحنة"),
			questionWithText("في الشكل المقابل، ما قيمة التيار المار في الدائرة؟"),
			questionWithText("ما وحدة قياس الجهد الكهربائي؟"),
			questionWithText("الرسم البياني التالي يوضح العلاقة بين الجهد والتيار"),
		}
		indices := s.SelectIndices(questions, models.ImageModeAuto, 0)
		assert.Equal(t, []int{1, 3}, indices)
	})

	t.Run("needsImage hint", func(t *testing.T) {
		questions := []models.Question{
			questionWithText("سؤال عادي بدون أي إشارة إلى شكل"),
			{Text: "سؤال آخر عادي", NeedsImage: true},
		}
		indices := s.SelectIndices(questions, models.ImageModeAuto, 0)
		assert.Equal(t, []int{1}, indices)
	})

	t.Run("no matches", func(t *testing.T) {
		questions := []models.Question{
			questionWithText("ما تعريف التيار الكهربائي؟"),
		}
		assert.Empty(t, s.SelectIndices(questions, models.ImageModeAuto, 0))
	})

	t.Run("deterministic", func(t *testing.T) {
		questions := []models.Question{
			questionWithText("في الدائرة الموضحة ما قيمة المقاومة؟"),
			questionWithText("سؤال عادي"),
		}
		first := s.SelectIndices(questions, models.ImageModeAuto, 0)
		second := s.SelectIndices(questions, models.ImageModeAuto, 0)
		assert.Equal(t, first, second)
	})
}

func TestImageSelector_PercentageMode(t *testing.T) {
	makeQuestions := func(n int) []models.Question {
		questions := make([]models.Question, n)
		for i := range questions {
			questions[i] = questionWithText("سؤال")
		}
		return questions
	}

	t.Run("count follows rounding", func(t *testing.T) {
		tests := []struct {
			total      int
			percentage int
			count      int
		}{
			{10, 50, 5},
			{10, 25, 3},  // 2.5 rounds up
			{10, 24, 2},  // 2.4 rounds down
			{3, 10, 1},   // 0.3 floors to 1
			{10, 100, 10},
			{1, 10, 1},
		}
		for _, tt := range tests {
			s := newTestImageSelector(42)
			indices := s.SelectIndices(makeQuestions(tt.total), models.ImageModePercentage, tt.percentage)
			assert.Len(t, indices, tt.count, "total=%d pct=%d", tt.total, tt.percentage)
		}
	})

	t.Run("indices are unique sorted and in range", func(t *testing.T) {
		s := newTestImageSelector(7)
		questions := makeQuestions(20)
		indices := s.SelectIndices(questions, models.ImageModePercentage, 40)
		require.Len(t, indices, 8)

		seen := map[int]bool{}
		prev := -1
		for _, idx := range indices {
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, 20)
			assert.False(t, seen[idx], "index %d selected twice", idx)
			assert.Greater(t, idx, prev, "indices must be ascending")
			seen[idx] = true
			prev = idx
		}
	})

	t.Run("same seed gives same sample", func(t *testing.T) {
		questions := makeQuestions(15)
		first := newTestImageSelector(99).SelectIndices(questions, models.ImageModePercentage, 30)
		second := newTestImageSelector(99).SelectIndices(questions, models.ImageModePercentage, 30)
		assert.Equal(t, first, second)
	})
}

func TestImageSelector_EmptyQuestionList(t *testing.T) {
	s := newTestImageSelector(1)
	assert.Empty(t, s.SelectIndices(nil, models.ImageModeAuto, 0))
	assert.Empty(t, s.SelectIndices(nil, models.ImageModePercentage, 50))
}
