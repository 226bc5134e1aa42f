// Package services provides the exam generation pipeline: prompt construction,
// AI gateway access, response parsing, normalization, quality control, and
// orchestration.
package services

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"examgen/internal/models"
)

//go:embed templates/*.tmpl
var promptTemplatesFS embed.FS

// Template names as constants
const (
	GenerationSystemTemplate   = "generation_system.tmpl"
	GenerationUserTemplate     = "generation_user.tmpl"
	RegenerationSystemTemplate = "regeneration_system.tmpl"
	RegenerationUserTemplate   = "regeneration_user.tmpl"
)

// PromptPair carries the system and user halves of one chat request.
type PromptPair struct {
	System string
	User   string
}

// RegenerationContext carries the exam context needed to rewrite weak questions.
type RegenerationContext struct {
	Title        string
	Subject      string
	Grade        string
	Description  string
	CustomPrompt string
}

// generationPromptData is the data fed into the generation templates.
type generationPromptData struct {
	Title            string
	Subject          string
	Grade            string
	Description      string
	DocumentText     string
	DifficultyClause string
	CustomPrompt     string
	QuestionCount    int
	StrictJSON       bool
}

// regenerationPromptData is the data fed into the regeneration templates.
type regenerationPromptData struct {
	Questions    []models.Question
	Title        string
	Subject      string
	Grade        string
	CustomPrompt string
}

// PromptTemplateManager parses and renders the embedded prompt templates.
type PromptTemplateManager struct {
	templates *template.Template
}

// NewPromptTemplateManager creates a new template manager
func NewPromptTemplateManager() (result0 *PromptTemplateManager, err error) {
	templates, err := template.New("").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(promptTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	return &PromptTemplateManager{templates: templates}, nil
}

// RenderTemplate renders a template with the given data
func (tm *PromptTemplateManager) RenderTemplate(templateName string, data interface{}) (result0 string, err error) {
	var buf strings.Builder
	err = tm.templates.ExecuteTemplate(&buf, templateName, data)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PromptBuilder constructs the generation and regeneration prompts. It is
// deterministic: identical inputs always produce identical prompt pairs, and
// it never fails once constructed.
type PromptBuilder struct {
	templates *PromptTemplateManager
}

// NewPromptBuilder creates a prompt builder backed by the embedded templates.
func NewPromptBuilder() (*PromptBuilder, error) {
	tm, err := NewPromptTemplateManager()
	if err != nil {
		return nil, err
	}
	return &PromptBuilder{templates: tm}, nil
}

// BuildGenerationPrompt renders the system and user prompts for the initial
// generation call. When both a source document and a description are present,
// the document is framed as the primary source of truth and the description as
// supplementary notes. strictJSON appends a "JSON only" reminder, used on the
// retry after a malformed response.
func (b *PromptBuilder) BuildGenerationPrompt(exam models.ExamConfig, gen models.GenerationConfig, sourceText string, strictJSON bool) (PromptPair, error) {
	data := generationPromptData{
		Title:            exam.Title,
		Subject:          exam.Subject,
		Grade:            exam.Grade,
		Description:      exam.Description,
		DocumentText:     sourceText,
		DifficultyClause: b.renderDifficultyClause(gen.Difficulty),
		CustomPrompt:     gen.CustomPrompt,
		QuestionCount:    gen.QuestionCount,
		StrictJSON:       strictJSON,
	}

	system, err := b.templates.RenderTemplate(GenerationSystemTemplate, data)
	if err != nil {
		return PromptPair{}, err
	}
	user, err := b.templates.RenderTemplate(GenerationUserTemplate, data)
	if err != nil {
		return PromptPair{}, err
	}
	return PromptPair{System: system, User: user}, nil
}

// BuildRegenerationPrompt renders a condensed prompt for rewriting weak
// questions: only the question text and difficulty of each item, never the
// full option set.
func (b *PromptBuilder) BuildRegenerationPrompt(weak []models.Question, rctx RegenerationContext) (PromptPair, error) {
	data := regenerationPromptData{
		Questions:    weak,
		Title:        rctx.Title,
		Subject:      rctx.Subject,
		Grade:        rctx.Grade,
		CustomPrompt: rctx.CustomPrompt,
	}

	system, err := b.templates.RenderTemplate(RegenerationSystemTemplate, data)
	if err != nil {
		return PromptPair{}, err
	}
	user, err := b.templates.RenderTemplate(RegenerationUserTemplate, data)
	if err != nil {
		return PromptPair{}, err
	}
	return PromptPair{System: system, User: user}, nil
}

// renderDifficultyClause renders the difficulty instructions. In mixed mode
// the three percentages are rendered verbatim; the caller owns the 100%
// invariant and no renormalization happens here.
func (b *PromptBuilder) renderDifficultyClause(d models.DifficultySettings) string {
	switch d.Mode {
	case models.DifficultyModeAllEasy:
		return "جميع الأسئلة يجب أن تكون سهلة (EASY)."
	case models.DifficultyModeAllMedium:
		return "جميع الأسئلة يجب أن تكون متوسطة (MEDIUM)."
	case models.DifficultyModeAllHard:
		return "جميع الأسئلة يجب أن تكون صعبة (HARD)."
	default:
		return fmt.Sprintf(`توزيع الصعوبة:
- أسئلة سهلة (EASY): %d%%
- أسئلة متوسطة (MEDIUM): %d%%
- أسئلة صعبة (HARD): %d%%`, d.EasyPercent, d.MediumPercent, d.HardPercent)
	}
}
