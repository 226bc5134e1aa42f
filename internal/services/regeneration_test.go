package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examgen/internal/config"
	"examgen/internal/models"
	"examgen/internal/observability"
)

type mockAIClient struct {
	response   string
	err        error
	calls      int
	lastModel  string
	lastSystem string
	lastUser   string
}

func (m *mockAIClient) Call(_ context.Context, model, system, user string) (string, error) {
	m.calls++
	m.lastModel = model
	m.lastSystem = system
	m.lastUser = user
	return m.response, m.err
}

func (m *mockAIClient) Shutdown(context.Context) error { return nil }

func newTestRegenerationCoordinator(t *testing.T, client AIClient) *RegenerationCoordinator {
	t.Helper()
	cfg := &config.Config{
		Generation: config.GenerationConfig{
			QualityThreshold: config.DefaultQualityThreshold,
			MaxRegenerate:    config.DefaultMaxRegenerate,
			RegeneratedScore: config.DefaultRegeneratedScore,
		},
		IsTest: true,
	}
	logger := observability.NewLogger(nil)
	prompts, err := NewPromptBuilder()
	require.NoError(t, err)
	return NewRegenerationCoordinator(cfg, logger, client, prompts, NewResponseParser(logger), NewQuestionNormalizer())
}

func weakQuestionFixtures() []models.Question {
	return []models.Question{
		{ID: "w1", Index: 2, Text: "سؤال ضعيف أول", Difficulty: models.DifficultyEasy, Mark: 1, QualityScore: 4},
		{ID: "w2", Index: 5, Text: "سؤال ضعيف ثاني", Difficulty: models.DifficultyHard, Mark: 3, QualityScore: 3},
	}
}

func TestRegenerationCoordinator_EmptyInput(t *testing.T) {
	client := &mockAIClient{}
	coord := newTestRegenerationCoordinator(t, client)

	result := coord.Regenerate(context.Background(), nil, RegenerationContext{}, "test/model")
	assert.Empty(t, result)
	assert.Zero(t, client.calls, "no network call for an empty batch")
}

func TestRegenerationCoordinator_Success(t *testing.T) {
	client := &mockAIClient{
		response: `[
			{"text":"سؤال محسّن أول","optionA":"أ","optionB":"ب","optionC":"ج","optionD":"د","correctOption":"B","difficulty":"EASY","mark":1,"explanation":"شرح واضح ومفصل"},
			{"text":"سؤال محسّن ثاني","optionA":"أ","optionB":"ب","optionC":"ج","optionD":"د","correctOption":"D","difficulty":"HARD","mark":3,"explanation":"شرح واضح ومفصل"}
		]`,
	}
	coord := newTestRegenerationCoordinator(t, client)
	weak := weakQuestionFixtures()

	result := coord.Regenerate(context.Background(), weak, RegenerationContext{Subject: "فيزياء", Grade: "12", Title: "اختبار"}, "test/model")
	require.Len(t, result, 2)

	assert.Equal(t, "سؤال محسّن أول", result[0].Text)
	assert.Equal(t, 2, result[0].Index, "replacement keeps the original index")
	assert.Equal(t, 5, result[1].Index)
	assert.Equal(t, config.DefaultRegeneratedScore, result[0].QualityScore)
	assert.Equal(t, config.DefaultRegeneratedScore, result[1].QualityScore)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "test/model", client.lastModel)

	// The condensed prompt lists question text, never the option set.
	assert.Contains(t, client.lastUser, "سؤال ضعيف أول")
	assert.Contains(t, client.lastUser, "فيزياء")
}

func TestRegenerationCoordinator_AICallFails(t *testing.T) {
	client := &mockAIClient{err: errors.New("gateway unreachable")}
	coord := newTestRegenerationCoordinator(t, client)
	weak := weakQuestionFixtures()

	result := coord.Regenerate(context.Background(), weak, RegenerationContext{}, "test/model")
	assert.Equal(t, weak, result, "originals come back unchanged on failure")
}

func TestRegenerationCoordinator_UnparseableResponse(t *testing.T) {
	client := &mockAIClient{response: "آسف، لا أستطيع تحسين هذه الأسئلة."}
	coord := newTestRegenerationCoordinator(t, client)
	weak := weakQuestionFixtures()

	result := coord.Regenerate(context.Background(), weak, RegenerationContext{}, "test/model")
	assert.Equal(t, weak, result)
}

func TestRegenerationCoordinator_PartialBatch(t *testing.T) {
	// Model returned one replacement for two weak questions: the unpaired
	// original stays.
	client := &mockAIClient{
		response: `[{"text":"سؤال محسّن وحيد","optionA":"أ","optionB":"ب","optionC":"ج","optionD":"د","correctOption":"A","difficulty":"EASY","explanation":"شرح واضح ومفصل"}]`,
	}
	coord := newTestRegenerationCoordinator(t, client)
	weak := weakQuestionFixtures()

	result := coord.Regenerate(context.Background(), weak, RegenerationContext{}, "test/model")
	require.Len(t, result, 2)
	assert.Equal(t, "سؤال محسّن وحيد", result[0].Text)
	assert.Equal(t, 2, result[0].Index)
	assert.Equal(t, weak[1], result[1])
}
