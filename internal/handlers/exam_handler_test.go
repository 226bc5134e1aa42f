package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examgen/internal/config"
	"examgen/internal/models"
	"examgen/internal/observability"
	"examgen/internal/services"
	contextutils "examgen/internal/utils"
)

type mockGenerator struct {
	exam       *models.Exam
	err        error
	calls      int
	lastExam   models.ExamConfig
	lastGen    models.GenerationConfig
	progressFn services.ProgressFunc
}

func (m *mockGenerator) Generate(_ context.Context, examCfg models.ExamConfig, genCfg models.GenerationConfig, progress services.ProgressFunc) (*models.Exam, error) {
	m.calls++
	m.lastExam = examCfg
	m.lastGen = genCfg
	m.progressFn = progress
	if progress != nil {
		progress(models.GenerationProgress{Step: models.StepComplete, Message: "done", Percent: 100})
	}
	return m.exam, m.err
}

type mockExamReader struct {
	exam      *models.Exam
	summaries []models.ExamSummary
	err       error
	deleted   []string
}

func (m *mockExamReader) GetExam(_ context.Context, examID string) (*models.Exam, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.exam, nil
}

func (m *mockExamReader) ListExams(_ context.Context, limit, offset int) ([]models.ExamSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.summaries, nil
}

func (m *mockExamReader) DeleteExam(_ context.Context, examID string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, examID)
	return nil
}

func handlerTestConfig() *config.Config {
	return &config.Config{
		Generation: config.GenerationConfig{
			MaxDocumentBytes: 1024,
		},
		IsTest: true,
	}
}

func newTestHandler(generator GenerationRunner, exams ExamReader) (*ExamHandler, *ProgressRegistry) {
	progress := NewProgressRegistry()
	h := NewExamHandler(generator, exams, progress, handlerTestConfig(), observability.NewLogger(nil))
	return h, progress
}

func performJSON(h *ExamHandler, method, target string, body interface{}) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/exams/generate", h.GenerateExam)
	router.GET("/v1/exams", h.ListExams)
	router.GET("/v1/exams/:id", h.GetExam)
	router.GET("/v1/exams/:id/export", h.ExportExam)
	router.DELETE("/v1/exams/:id", h.DeleteExam)
	router.GET("/v1/progress/:runID", h.GetProgress)

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validGenerateBody() map[string]interface{} {
	return map[string]interface{}{
		"title":         "اختبار الفيزياء",
		"description":   "قانون كولوم والمجال الكهربائي",
		"subject":       "فيزياء",
		"grade":         "الصف الثالث الثانوي",
		"questionCount": 5,
	}
}

func sampleExam() *models.Exam {
	return &models.Exam{
		ID: "exam-1",
		ExamConfig: models.ExamConfig{
			Title: "اختبار الفيزياء",
		},
		Questions: []models.Question{
			{
				ID:            "q-1",
				Index:         1,
				Text:          "ما هي وحدة قياس الشحنة الكهربائية؟",
				OptionA:       "كولوم",
				OptionB:       "فولت",
				OptionC:       "أمبير",
				OptionD:       "واط",
				CorrectOption: "A",
				Difficulty:    models.DifficultyEasy,
				Mark:          1,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestGenerateExam_JSONSuccess(t *testing.T) {
	generator := &mockGenerator{exam: sampleExam()}
	h, _ := newTestHandler(generator, &mockExamReader{})

	w := performJSON(h, http.MethodPost, "/v1/exams/generate", validGenerateBody())

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, generator.calls)
	assert.Equal(t, "اختبار الفيزياء", generator.lastExam.Title)
	assert.Equal(t, 5, generator.lastGen.QuestionCount)

	var exam models.Exam
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exam))
	assert.Equal(t, "exam-1", exam.ID)
	assert.Len(t, exam.Questions, 1)
}

func TestGenerateExam_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing title", func(b map[string]interface{}) { delete(b, "title") }},
		{"zero question count", func(b map[string]interface{}) { b["questionCount"] = 0 }},
		{"too many questions", func(b map[string]interface{}) { b["questionCount"] = 101 }},
		{"bad image mode", func(b map[string]interface{}) { b["imageMode"] = "always" }},
		{"bad source type", func(b map[string]interface{}) { b["sourceType"] = "audio" }},
		{"image percentage below minimum", func(b map[string]interface{}) { b["imagePercentage"] = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := &mockGenerator{exam: sampleExam()}
			h, _ := newTestHandler(generator, &mockExamReader{})

			body := validGenerateBody()
			tt.mutate(body)
			w := performJSON(h, http.MethodPost, "/v1/exams/generate", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, generator.calls)
		})
	}
}

func TestGenerateExam_MixedDifficultyMustTotal100(t *testing.T) {
	generator := &mockGenerator{exam: sampleExam()}
	h, _ := newTestHandler(generator, &mockExamReader{})

	body := validGenerateBody()
	body["difficulty"] = map[string]interface{}{
		"mode":          "mixed",
		"easyPercent":   30,
		"mediumPercent": 30,
		"hardPercent":   30,
	}
	w := performJSON(h, http.MethodPost, "/v1/exams/generate", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, generator.calls)
	assert.Contains(t, w.Body.String(), "difficulty")
}

func TestGenerateExam_RequiresDescriptionOrDocument(t *testing.T) {
	generator := &mockGenerator{exam: sampleExam()}
	h, _ := newTestHandler(generator, &mockExamReader{})

	body := validGenerateBody()
	delete(body, "description")
	w := performJSON(h, http.MethodPost, "/v1/exams/generate", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, generator.calls)
}

func TestGenerateExam_PipelineErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"rate limited", contextutils.WrapError(contextutils.ErrAIRateLimited, "gateway throttled"), http.StatusTooManyRequests},
		{"payment required", contextutils.WrapError(contextutils.ErrAIPaymentRequired, "quota exhausted"), http.StatusPaymentRequired},
		{"generation failed", contextutils.WrapError(contextutils.ErrGenerationFailed, "unparseable"), http.StatusInternalServerError},
		{"bad model", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "model not allow-listed"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := &mockGenerator{err: tt.err}
			h, _ := newTestHandler(generator, &mockExamReader{})

			w := performJSON(h, http.MethodPost, "/v1/exams/generate", validGenerateBody())

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGenerateExam_MultipartWithDocument(t *testing.T) {
	generator := &mockGenerator{exam: sampleExam()}
	h, _ := newTestHandler(generator, &mockExamReader{})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/exams/generate", h.GenerateExam)

	configData, _ := json.Marshal(validGenerateBody())
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("config", string(configData)))
	part, err := mw.CreateFormFile("document", "chapter3.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake document body"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/exams/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []byte("%PDF-1.4 fake document body"), generator.lastGen.Document)
	assert.Equal(t, "chapter3.pdf", generator.lastGen.DocumentName)
}

func TestGenerateExam_MultipartDocumentTooLarge(t *testing.T) {
	generator := &mockGenerator{exam: sampleExam()}
	h, _ := newTestHandler(generator, &mockExamReader{})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/exams/generate", h.GenerateExam)

	configData, _ := json.Marshal(validGenerateBody())
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("config", string(configData)))
	part, err := mw.CreateFormFile("document", "huge.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 2048))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/exams/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, generator.calls)
}

func TestGenerateExam_MultipartMissingConfigField(t *testing.T) {
	h, _ := newTestHandler(&mockGenerator{}, &mockExamReader{})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/exams/generate", h.GenerateExam)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/exams/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateExam_RunIDPublishesProgress(t *testing.T) {
	generator := &mockGenerator{exam: sampleExam()}
	h, registry := newTestHandler(generator, &mockExamReader{})

	w := performJSON(h, http.MethodPost, "/v1/exams/generate?runId=run-42", validGenerateBody())
	require.Equal(t, http.StatusCreated, w.Code)

	progress, ok := registry.Get("run-42")
	require.True(t, ok)
	assert.Equal(t, models.StepComplete, progress.Step)
	assert.Equal(t, 100, progress.Percent)
}

func TestGetProgress(t *testing.T) {
	h, registry := newTestHandler(&mockGenerator{}, &mockExamReader{})
	registry.Publish("run-1", models.GenerationProgress{Step: models.StepGenerating, Message: "working", Percent: 20})

	t.Run("KnownRun", func(t *testing.T) {
		w := performJSON(h, http.MethodGet, "/v1/progress/run-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var progress models.GenerationProgress
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &progress))
		assert.Equal(t, models.StepGenerating, progress.Step)
		assert.Equal(t, 20, progress.Percent)
	})

	t.Run("UnknownRun", func(t *testing.T) {
		w := performJSON(h, http.MethodGet, "/v1/progress/run-missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListExams(t *testing.T) {
	reader := &mockExamReader{summaries: []models.ExamSummary{
		{ID: "exam-1", Title: "اختبار الفيزياء", QuestionCount: 10, TotalMarks: 20},
		{ID: "exam-2", Title: "اختبار الكيمياء", QuestionCount: 5, TotalMarks: 10},
	}}
	h, _ := newTestHandler(&mockGenerator{}, reader)

	w := performJSON(h, http.MethodGet, "/v1/exams?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Exams []models.ExamSummary `json:"exams"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Exams, 2)
	assert.Equal(t, "exam-1", body.Exams[0].ID)
}

func TestGetExam_NotFound(t *testing.T) {
	reader := &mockExamReader{err: contextutils.WrapError(contextutils.ErrExamNotFound, "no such exam")}
	h, _ := newTestHandler(&mockGenerator{}, reader)

	w := performJSON(h, http.MethodGet, "/v1/exams/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteExam(t *testing.T) {
	reader := &mockExamReader{}
	h, _ := newTestHandler(&mockGenerator{}, reader)

	w := performJSON(h, http.MethodDelete, "/v1/exams/exam-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"exam-1"}, reader.deleted)
}

func TestExportExam(t *testing.T) {
	reader := &mockExamReader{exam: sampleExam()}
	h, _ := newTestHandler(&mockGenerator{}, reader)

	t.Run("CSVDefault", func(t *testing.T) {
		w := performJSON(h, http.MethodGet, "/v1/exams/exam-1/export", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

		body := w.Body.Bytes()
		require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}), "CSV export should start with a UTF-8 BOM")
		assert.Contains(t, string(body), "كولوم")
	})

	t.Run("JSON", func(t *testing.T) {
		w := performJSON(h, http.MethodGet, "/v1/exams/exam-1/export?format=json", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".json")

		var exam models.Exam
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exam))
		assert.Equal(t, "exam-1", exam.ID)
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		w := performJSON(h, http.MethodGet, "/v1/exams/exam-1/export?format=xlsx", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExportExam_FilenameFromTitle(t *testing.T) {
	exam := sampleExam()
	exam.Title = "final exam 2026"
	reader := &mockExamReader{exam: exam}
	h, _ := newTestHandler(&mockGenerator{}, reader)

	w := performJSON(h, http.MethodGet, "/v1/exams/exam-1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	disposition := w.Header().Get("Content-Disposition")
	assert.Contains(t, disposition, "final_exam_2026.csv")
	assert.False(t, strings.Contains(disposition, "final exam"), fmt.Sprintf("spaces should be replaced in %q", disposition))
}
