// Package models contains the core data structures for the exam generation service.
package models

import (
	"strings"
	"time"
)

// Difficulty represents the difficulty level of a single question.
type Difficulty string

const (
	// DifficultyEasy marks a question worth 1 mark by default
	DifficultyEasy Difficulty = "EASY"
	// DifficultyMedium marks a question worth 2 marks by default
	DifficultyMedium Difficulty = "MEDIUM"
	// DifficultyHard marks a question worth 3 marks by default
	DifficultyHard Difficulty = "HARD"
)

// ParseDifficulty maps a free-form difficulty string onto the closed Difficulty set,
// defaulting to MEDIUM for anything unrecognized.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToUpper(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// DefaultMark returns the mark derived from the difficulty: EASY=1, MEDIUM=2, HARD=3.
func (d Difficulty) DefaultMark() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

// CorrectOption identifies which of the four options is correct.
type CorrectOption string

// The four valid option symbols.
const (
	CorrectOptionA CorrectOption = "A"
	CorrectOptionB CorrectOption = "B"
	CorrectOptionC CorrectOption = "C"
	CorrectOptionD CorrectOption = "D"
)

// IsValid reports whether the option is one of the four valid symbols.
func (o CorrectOption) IsValid() bool {
	switch o {
	case CorrectOptionA, CorrectOptionB, CorrectOptionC, CorrectOptionD:
		return true
	}
	return false
}

// Question represents a single multiple-choice question within an exam.
// Instances are created in bulk by the generation pipeline, may be replaced
// in place by regeneration (index preserved), and become immutable once the
// owning exam is persisted.
type Question struct {
	ID            string        `json:"id" yaml:"id"`
	Index         int           `json:"index" yaml:"index"`
	Text          string        `json:"text" yaml:"text"`
	OptionA       string        `json:"optionA" yaml:"option_a"`
	OptionB       string        `json:"optionB" yaml:"option_b"`
	OptionC       string        `json:"optionC" yaml:"option_c"`
	OptionD       string        `json:"optionD" yaml:"option_d"`
	CorrectOption CorrectOption `json:"correctOption" yaml:"correct_option"`
	Difficulty    Difficulty    `json:"difficulty" yaml:"difficulty"`
	Mark          int           `json:"mark" yaml:"mark"`
	Explanation   string        `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	ImageURL      string        `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	NeedsImage    bool          `json:"needsImage,omitempty" yaml:"needs_image,omitempty"`
	// QualityScore is set only when the quality evaluator ran (1-10).
	QualityScore int `json:"qualityScore,omitempty" yaml:"quality_score,omitempty"`
}

// Options returns the four option texts in A..D order.
func (q *Question) Options() []string {
	return []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}

// DifficultyMode selects how question difficulty is distributed across an exam.
type DifficultyMode string

// The supported difficulty distribution modes.
const (
	DifficultyModeAllEasy   DifficultyMode = "all-easy"
	DifficultyModeAllMedium DifficultyMode = "all-medium"
	DifficultyModeAllHard   DifficultyMode = "all-hard"
	DifficultyModeMixed     DifficultyMode = "mixed"
)

// DifficultySettings configures the difficulty distribution for a generation run.
// In mixed mode the three percentages are expected to total 100; that invariant
// belongs to the configuration layer, and the prompt builder renders whatever it
// is given without renormalizing.
type DifficultySettings struct {
	Mode          DifficultyMode `json:"mode" yaml:"mode"`
	EasyPercent   int            `json:"easyPercent,omitempty" yaml:"easy_percent,omitempty"`
	MediumPercent int            `json:"mediumPercent,omitempty" yaml:"medium_percent,omitempty"`
	HardPercent   int            `json:"hardPercent,omitempty" yaml:"hard_percent,omitempty"`
}

// PercentagesTotal returns the sum of the three mixed-mode percentages.
func (d DifficultySettings) PercentagesTotal() int {
	return d.EasyPercent + d.MediumPercent + d.HardPercent
}

// ImageMode selects which questions receive diagram augmentation.
type ImageMode string

const (
	// ImageModeAuto selects questions whose text references a figure or that carry the needsImage hint
	ImageModeAuto ImageMode = "auto"
	// ImageModePercentage selects a fixed share of questions uniformly at random
	ImageModePercentage ImageMode = "percentage"
)

// SourceType identifies which generation inputs are in play.
type SourceType string

// The supported source configurations.
const (
	SourceDescription SourceType = "description"
	SourcePDF         SourceType = "pdf"
	SourceBoth        SourceType = "both"
)

// ExamConfig carries the caller-supplied exam metadata.
type ExamConfig struct {
	Title           string `json:"title" yaml:"title"`
	Description     string `json:"description" yaml:"description"`
	Subject         string `json:"subject" yaml:"subject"`
	Grade           string `json:"grade" yaml:"grade"`
	DurationMinutes int    `json:"durationMinutes" yaml:"duration_minutes"`
	PassingPercent  int    `json:"passingPercent" yaml:"passing_percent"`
}

// GenerationConfig aggregates the settings for one generation run.
type GenerationConfig struct {
	QuestionCount      int                `json:"questionCount" yaml:"question_count"`
	Difficulty         DifficultySettings `json:"difficulty" yaml:"difficulty"`
	GenerateImages     bool               `json:"generateImages" yaml:"generate_images"`
	ImageMode          ImageMode          `json:"imageMode" yaml:"image_mode"`
	ImagePercentage    int                `json:"imagePercentage" yaml:"image_percentage"`
	SourceType         SourceType         `json:"sourceType" yaml:"source_type"`
	Document           []byte             `json:"-" yaml:"-"`
	DocumentName       string             `json:"documentName,omitempty" yaml:"document_name,omitempty"`
	CustomPrompt       string             `json:"customPrompt,omitempty" yaml:"custom_prompt,omitempty"`
	EnableQualityCheck bool               `json:"enableQualityCheck" yaml:"enable_quality_check"`
	Model              string             `json:"model" yaml:"model"`
}

// Exam is a complete generated exam: metadata plus an ordered question list.
// Ownership passes to the caller once generation completes.
type Exam struct {
	ID        string     `json:"id" yaml:"id"`
	ExamConfig `yaml:",inline"`
	Questions []Question `json:"questions" yaml:"questions"`
	CreatedAt time.Time  `json:"createdAt" yaml:"created_at"`
}

// ExamSummary is the listing view of a stored exam, without its questions.
type ExamSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subject       string    `json:"subject"`
	Grade         string    `json:"grade"`
	QuestionCount int       `json:"questionCount"`
	TotalMarks    int       `json:"totalMarks"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TotalMarks sums the marks of all questions.
func (e *Exam) TotalMarks() int {
	total := 0
	for i := range e.Questions {
		total += e.Questions[i].Mark
	}
	return total
}

// GenerationStep identifies a stage of the generation state machine.
type GenerationStep string

// Generation pipeline steps, in the order a successful run visits them.
// The error step is terminal and reachable from any non-idle step.
const (
	StepIdle         GenerationStep = "idle"
	StepAnalyzing    GenerationStep = "analyzing"
	StepGenerating   GenerationStep = "generating"
	StepQualityCheck GenerationStep = "quality-check"
	StepRegenerating GenerationStep = "regenerating"
	StepImages       GenerationStep = "images"
	StepFinalizing   GenerationStep = "finalizing"
	StepComplete     GenerationStep = "complete"
	StepError        GenerationStep = "error"
)

// GenerationProgress is the transient, caller-visible state of one run.
// Percent is a monotonically non-decreasing hint, not a precise measure.
type GenerationProgress struct {
	Step    GenerationStep `json:"step"`
	Message string         `json:"message"`
	Percent int            `json:"percent"`
}
