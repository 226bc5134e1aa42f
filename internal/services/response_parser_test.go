package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examgen/internal/observability"
	contextutils "examgen/internal/utils"
)

func newTestResponseParser() *ResponseParser {
	return NewResponseParser(observability.NewLogger(nil))
}

func TestResponseParser_ParseQuestions(t *testing.T) {
	parser := newTestResponseParser()
	ctx := context.Background()

	t.Run("plain JSON array", func(t *testing.T) {
		questions, err := parser.ParseQuestions(ctx, `[{"text":"سؤال","optionA":"أ"}]`)
		require.NoError(t, err)
		require.Len(t, questions, 1)
		assert.Equal(t, "سؤال", questions[0]["text"])
	})

	t.Run("json markdown fence", func(t *testing.T) {
		response := "```json\n[{\"text\":\"q1\"},{\"text\":\"q2\"}]\n```"
		questions, err := parser.ParseQuestions(ctx, response)
		require.NoError(t, err)
		assert.Len(t, questions, 2)
	})

	t.Run("bare markdown fence", func(t *testing.T) {
		response := "```\n[{\"text\":\"q1\"}]\n```"
		questions, err := parser.ParseQuestions(ctx, response)
		require.NoError(t, err)
		assert.Len(t, questions, 1)
	})

	t.Run("prose around the array", func(t *testing.T) {
		response := "إليك الأسئلة المطلوبة:\n[{\"text\":\"q1\"}]\nأتمنى أن تكون مفيدة."
		questions, err := parser.ParseQuestions(ctx, response)
		require.NoError(t, err)
		assert.Len(t, questions, 1)
	})

	t.Run("objects missing every field still parse", func(t *testing.T) {
		questions, err := parser.ParseQuestions(ctx, `[{}, {}]`)
		require.NoError(t, err)
		assert.Len(t, questions, 2)
	})

	t.Run("empty response", func(t *testing.T) {
		_, err := parser.ParseQuestions(ctx, "")
		assert.True(t, contextutils.IsError(err, contextutils.ErrAIResponseInvalid))
	})

	t.Run("no array present", func(t *testing.T) {
		_, err := parser.ParseQuestions(ctx, "عذراً، لا أستطيع إنشاء أسئلة من هذا المحتوى.")
		assert.True(t, contextutils.IsError(err, contextutils.ErrAIResponseInvalid))
	})

	t.Run("array of non-objects", func(t *testing.T) {
		_, err := parser.ParseQuestions(ctx, `["just", "strings"]`)
		assert.True(t, contextutils.IsError(err, contextutils.ErrAIResponseInvalid))
	})

	t.Run("empty array", func(t *testing.T) {
		_, err := parser.ParseQuestions(ctx, "[]")
		assert.True(t, contextutils.IsError(err, contextutils.ErrAIResponseInvalid))
	})

	t.Run("truncated array", func(t *testing.T) {
		_, err := parser.ParseQuestions(ctx, `[{"text":"q1"`)
		assert.True(t, contextutils.IsError(err, contextutils.ErrAIResponseInvalid))
	})
}
