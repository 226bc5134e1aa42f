package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"examgen/internal/config"
	"examgen/internal/models"
	"examgen/internal/observability"
	"examgen/internal/services"
	contextutils "examgen/internal/utils"
)

// GenerationRunner runs one exam generation end to end.
type GenerationRunner interface {
	Generate(ctx context.Context, examCfg models.ExamConfig, genCfg models.GenerationConfig, progress services.ProgressFunc) (*models.Exam, error)
}

// ExamReader retrieves stored exams.
type ExamReader interface {
	GetExam(ctx context.Context, examID string) (*models.Exam, error)
	ListExams(ctx context.Context, limit, offset int) ([]models.ExamSummary, error)
	DeleteExam(ctx context.Context, examID string) error
}

// GenerateExamRequest is the payload of POST /v1/exams/generate. With a
// multipart request it arrives as the "config" form field, alongside an
// optional "document" file.
type GenerateExamRequest struct {
	Title              string                    `json:"title" validate:"required"`
	Description        string                    `json:"description"`
	Subject            string                    `json:"subject"`
	Grade              string                    `json:"grade"`
	DurationMinutes    int                       `json:"durationMinutes" validate:"omitempty,min=0"`
	PassingPercent     int                       `json:"passingPercent" validate:"omitempty,min=0,max=100"`
	QuestionCount      int                       `json:"questionCount" validate:"required,min=1,max=100"`
	Difficulty         models.DifficultySettings `json:"difficulty"`
	GenerateImages     bool                      `json:"generateImages"`
	ImageMode          models.ImageMode          `json:"imageMode" validate:"omitempty,oneof=auto percentage"`
	ImagePercentage    int                       `json:"imagePercentage" validate:"omitempty,min=10,max=100"`
	SourceType         models.SourceType         `json:"sourceType" validate:"omitempty,oneof=description pdf both"`
	CustomPrompt       string                    `json:"customPrompt"`
	EnableQualityCheck bool                      `json:"enableQualityCheck"`
	Model              string                    `json:"model"`
}

// ExamHandler serves exam generation, retrieval, and export.
type ExamHandler struct {
	generator GenerationRunner
	exams     ExamReader
	progress  *ProgressRegistry
	cfg       *config.Config
	logger    *observability.Logger
	validate  *validator.Validate
}

// NewExamHandler creates an exam handler.
func NewExamHandler(generator GenerationRunner, exams ExamReader, progress *ProgressRegistry, cfg *config.Config, logger *observability.Logger) *ExamHandler {
	return &ExamHandler{
		generator: generator,
		exams:     exams,
		progress:  progress,
		cfg:       cfg,
		logger:    logger,
		validate:  validator.New(),
	}
}

// GenerateExam handles POST /v1/exams/generate. The optional runId query
// parameter keys live progress for polling via GET /v1/progress/:runID.
func (h *ExamHandler) GenerateExam(c *gin.Context) {
	ctx := c.Request.Context()

	req, document, documentName, err := h.parseGenerateRequest(c)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		HandleValidationError(c, "request", "", err.Error())
		return
	}
	if req.Difficulty.Mode == models.DifficultyModeMixed && req.Difficulty.PercentagesTotal() != 100 {
		HandleValidationError(c, "difficulty", req.Difficulty.PercentagesTotal(), "mixed-mode percentages must total 100")
		return
	}
	if req.Description == "" && len(document) == 0 {
		HandleValidationError(c, "description", "", "either a description or a document is required")
		return
	}

	examCfg := models.ExamConfig{
		Title:           req.Title,
		Description:     req.Description,
		Subject:         req.Subject,
		Grade:           req.Grade,
		DurationMinutes: req.DurationMinutes,
		PassingPercent:  req.PassingPercent,
	}
	genCfg := models.GenerationConfig{
		QuestionCount:      req.QuestionCount,
		Difficulty:         req.Difficulty,
		GenerateImages:     req.GenerateImages,
		ImageMode:          req.ImageMode,
		ImagePercentage:    req.ImagePercentage,
		SourceType:         req.SourceType,
		Document:           document,
		DocumentName:       documentName,
		CustomPrompt:       req.CustomPrompt,
		EnableQualityCheck: req.EnableQualityCheck,
		Model:              req.Model,
	}

	runID := c.Query("runId")
	progress := func(p models.GenerationProgress) {
		h.progress.Publish(runID, p)
	}

	exam, err := h.generator.Generate(ctx, examCfg, genCfg, progress)
	if err != nil {
		h.logger.Error(ctx, "Exam generation failed", err, map[string]interface{}{
			"title":  req.Title,
			"run_id": runID,
		})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// parseGenerateRequest reads the request body, which is either plain JSON or
// multipart form data carrying a JSON "config" field and a "document" file.
func (h *ExamHandler) parseGenerateRequest(c *gin.Context) (GenerateExamRequest, []byte, string, error) {
	var req GenerateExamRequest

	contentType := c.ContentType()
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid request body: %w", err)
		}
		return req, nil, "", nil
	}

	configJSON := c.PostForm("config")
	if configJSON == "" {
		return req, nil, "", contextutils.WrapError(contextutils.ErrMissingRequired, "multipart requests need a 'config' field")
	}
	if err := json.Unmarshal([]byte(configJSON), &req); err != nil {
		return req, nil, "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid 'config' field: %w", err)
	}

	file, header, err := c.Request.FormFile("document")
	if err == http.ErrMissingFile {
		return req, nil, "", nil
	}
	if err != nil {
		return req, nil, "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "could not read document: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn(c.Request.Context(), "Failed to close uploaded document", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	maxBytes := h.cfg.Generation.MaxDocumentBytes
	if header.Size > maxBytes {
		return req, nil, "", contextutils.WrapErrorf(contextutils.ErrDocumentTooLarge, "document is %d bytes, limit is %d", header.Size, maxBytes)
	}

	document, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return req, nil, "", contextutils.WrapErrorf(err, "could not read document body")
	}
	if int64(len(document)) > maxBytes {
		return req, nil, "", contextutils.WrapErrorf(contextutils.ErrDocumentTooLarge, "document exceeds the %d byte limit", maxBytes)
	}

	return req, document, header.Filename, nil
}

// GetProgress handles GET /v1/progress/:runID.
func (h *ExamHandler) GetProgress(c *gin.Context) {
	runID := c.Param("runID")
	progress, ok := h.progress.Get(runID)
	if !ok {
		StandardizeHTTPError(c, http.StatusNotFound, "Unknown run", fmt.Sprintf("no progress recorded for run %q", runID))
		return
	}
	c.JSON(http.StatusOK, progress)
}

// ListExams handles GET /v1/exams.
func (h *ExamHandler) ListExams(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	summaries, err := h.exams.ListExams(c.Request.Context(), limit, offset)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exams": summaries})
}

// GetExam handles GET /v1/exams/:id.
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.exams.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

// DeleteExam handles DELETE /v1/exams/:id.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	if err := h.exams.DeleteExam(c.Request.Context(), c.Param("id")); err != nil {
		HandleAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportExam handles GET /v1/exams/:id/export?format=csv|json.
func (h *ExamHandler) ExportExam(c *gin.Context) {
	exam, err := h.exams.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}

	filename := strings.ReplaceAll(exam.Title, " ", "_")
	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))
		if err := services.WriteExamCSV(c.Writer, exam); err != nil {
			h.logger.Error(c.Request.Context(), "CSV export failed mid-stream", err, map[string]interface{}{
				"exam_id": exam.ID,
			})
		}
	case "json":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", filename))
		c.JSON(http.StatusOK, exam)
	default:
		HandleValidationError(c, "format", format, "supported formats are csv and json")
	}
}
