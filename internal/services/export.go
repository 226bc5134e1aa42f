package services

import (
	"encoding/csv"
	"io"
	"strconv"

	"examgen/internal/models"
	contextutils "examgen/internal/utils"
)

// csvExportHeader is the column layout of an exported exam.
var csvExportHeader = []string{
	"index", "text", "optionA", "optionB", "optionC", "optionD",
	"correct", "difficulty", "mark", "explanation", "imageUrl", "qualityScore",
}

// WriteExamCSV writes an exam as UTF-8 CSV: one header row, then one row per
// question in index order. A UTF-8 BOM is prepended so spreadsheet
// applications detect the encoding and render Arabic text correctly.
func WriteExamCSV(w io.Writer, exam *models.Exam) error {
	if exam == nil {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "exam is required")
	}

	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return contextutils.WrapErrorf(err, "failed to write BOM")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvExportHeader); err != nil {
		return contextutils.WrapErrorf(err, "failed to write CSV header")
	}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		row := []string{
			strconv.Itoa(q.Index),
			q.Text,
			q.OptionA,
			q.OptionB,
			q.OptionC,
			q.OptionD,
			string(q.CorrectOption),
			string(q.Difficulty),
			strconv.Itoa(q.Mark),
			q.Explanation,
			q.ImageURL,
			formatQualityScore(q.QualityScore),
		}
		if err := cw.Write(row); err != nil {
			return contextutils.WrapErrorf(err, "failed to write question %d", q.Index)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return contextutils.WrapErrorf(err, "failed to flush CSV output")
	}
	return nil
}

// formatQualityScore renders a score, empty when evaluation never ran.
func formatQualityScore(score int) string {
	if score == 0 {
		return ""
	}
	return strconv.Itoa(score)
}
