package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

func TestExportService_ExportResults(t *testing.T) {
	service := NewExportService(slog.New(slog.NewTextHandler(io.Discard, nil)))
	markedAt := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	results := []*models.MarkingResult{
		{
			QuestionID:   "q1",
			QuestionType: models.Spot,
			UserAnswer:   models.ListAnswer("cat", "dog"),
			MarkMax:      2,
			UserMark:     models.MarkPtr(1),
			IsMarked:     true,
			MarkedAt:     &markedAt,
			AnnotatedAnswer: models.AnnotatedAnswer{Pairs: []models.AnswerPair{
				{CorrectAnswer: "dog", UserAnswer: "dog", IsCorrect: true},
				{CorrectAnswer: "cat", UserAnswer: "missed", IsCorrect: false},
			}},
		},
		{
			QuestionID:      "q2",
			QuestionType:    models.LongAnswer,
			UserAnswer:      models.TextAnswer("An essay."),
			MarkMax:         6,
			UserMark:        models.MarkPtr(4),
			IsMarked:        true,
			AnnotatedAnswer: models.AnnotatedAnswer{Text: "An `essay`."},
			MarkingTable:    "| AO1 | 4 |",
		},
		{
			QuestionID:   "q3",
			QuestionType: models.Drawing,
			UserAnswer:   models.TextAnswer("sketch"),
		},
	}

	data, err := service.ExportResults(context.Background(), results)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, "Question ID", summary[0][0])
	assert.Equal(t, []string{"q1", "spot", "1", "2"}, summary[1][:4])
	assert.Equal(t, "2025-03-01 10:30:00", summary[1][5])
	assert.Equal(t, "An `essay`.", summary[2][6])
	assert.Equal(t, "sketch", summary[3][6])

	rubric, err := f.GetRows(rubricSheet)
	require.NoError(t, err)
	require.Len(t, rubric, 4)
	assert.Equal(t, []string{"q1", "dog", "dog", "1"}, rubric[1])
	assert.Equal(t, []string{"q1", "cat", "missed", "0"}, rubric[2])
	assert.Equal(t, "| AO1 | 4 |", rubric[3][1])
}

func TestExportService_CancelledContext(t *testing.T) {
	service := NewExportService(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.ExportResults(ctx, []*models.MarkingResult{{QuestionID: "q1"}})
	assert.ErrorIs(t, err, context.Canceled)
}
