package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

const (
	summarySheet = "Summary"
	rubricSheet  = "Rubric"
)

// ExportService writes marking results to spreadsheets.
type ExportService interface {
	ExportResults(ctx context.Context, results []*models.MarkingResult) ([]byte, error)
}

type exportService struct {
	logger *slog.Logger
}

func NewExportService(logger *slog.Logger) ExportService {
	return &exportService{logger: logger}
}

// ExportResults writes a workbook with a summary row per question and the
// rubric rows of every marked question.
func (s *exportService) ExportResults(ctx context.Context, results []*models.MarkingResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if _, err := f.NewSheet(rubricSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	summaryHeaders := []interface{}{"Question ID", "Question Type", "Mark", "Mark Max", "Marked", "Marked At", "Answer"}
	if err := writeRow(f, summarySheet, 1, summaryHeaders); err != nil {
		return nil, err
	}
	rubricHeaders := []interface{}{"Question ID", "Correct Answer", "Your Answer", "Mark"}
	if err := writeRow(f, rubricSheet, 1, rubricHeaders); err != nil {
		return nil, err
	}

	rubricRow := 2
	for i, r := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var mark interface{} = ""
		if r.UserMark != nil {
			mark = *r.UserMark
		}
		markedAt := ""
		if r.MarkedAt != nil {
			markedAt = r.MarkedAt.Format("2006-01-02 15:04:05")
		}
		answer := r.AnnotatedAnswer.Text
		if answer == "" {
			answer = flattenAnswer(r.UserAnswer)
		}

		row := []interface{}{r.QuestionID, string(r.QuestionType), mark, r.MarkMax, r.IsMarked, markedAt, answer}
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			return nil, err
		}

		for _, p := range r.AnnotatedAnswer.Pairs {
			score := 0
			if p.IsCorrect {
				score = 1
			}
			if err := writeRow(f, rubricSheet, rubricRow, []interface{}{r.QuestionID, p.CorrectAnswer, p.UserAnswer, score}); err != nil {
				return nil, err
			}
			rubricRow++
		}
		if len(r.AnnotatedAnswer.Pairs) == 0 && r.MarkingTable != "" {
			if err := writeRow(f, rubricSheet, rubricRow, []interface{}{r.QuestionID, r.MarkingTable, "", mark}); err != nil {
				return nil, err
			}
			rubricRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported marking results", "questions", len(results), "rubric_rows", rubricRow-2)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func flattenAnswer(a models.Answer) string {
	raw, err := a.MarshalJSON()
	if err != nil || a.Kind == models.AnswerEmpty {
		return ""
	}
	if a.Kind == models.AnswerText {
		return a.Text
	}
	return string(raw)
}
