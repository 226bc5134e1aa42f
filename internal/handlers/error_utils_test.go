package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contextutils "examgen/internal/utils"
)

func runOnContext(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)
	return w
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code contextutils.ErrorCode
		want int
	}{
		{contextutils.ErrorCodeInvalidInput, http.StatusBadRequest},
		{contextutils.ErrorCodeMissingRequired, http.StatusBadRequest},
		{contextutils.ErrorCodeAIConfigInvalid, http.StatusBadRequest},
		{contextutils.ErrorCodeExamNotFound, http.StatusNotFound},
		{contextutils.ErrorCodeDocumentTooLarge, http.StatusRequestEntityTooLarge},
		{contextutils.ErrorCodeAIRateLimited, http.StatusTooManyRequests},
		{contextutils.ErrorCodeAIPaymentRequired, http.StatusPaymentRequired},
		{contextutils.ErrorCodeServiceUnavailable, http.StatusServiceUnavailable},
		{contextutils.ErrorCodeGenerationFailed, http.StatusInternalServerError},
		{contextutils.ErrorCodeAIResponseInvalid, http.StatusInternalServerError},
		{contextutils.ErrorCode("something-new"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestHandleAppError_UnwrapsAppError(t *testing.T) {
	err := contextutils.WrapErrorf(contextutils.ErrAIRateLimited, "outer context: %w", errors.New("inner"))

	w := runOnContext(func(c *gin.Context) {
		HandleAppError(c, err)
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), string(contextutils.ErrorCodeAIRateLimited))
}

func TestHandleAppError_PlainErrorBecomes500(t *testing.T) {
	w := runOnContext(func(c *gin.Context) {
		HandleAppError(c, errors.New("something broke"))
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestHandleValidationError(t *testing.T) {
	w := runOnContext(func(c *gin.Context) {
		HandleValidationError(c, "questionCount", 150, "must be between 1 and 100")
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "questionCount")
	assert.Contains(t, w.Body.String(), "must be between 1 and 100")
}

func TestStandardizeHTTPError_CodesBySeverity(t *testing.T) {
	w := runOnContext(func(c *gin.Context) {
		StandardizeHTTPError(c, http.StatusNotFound, "Unknown run", "no progress recorded")
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown run")
}
