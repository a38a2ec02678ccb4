package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/marking-service/internal/models"
	"github.com/SAP-F-2025/marking-service/internal/repositories"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func deleteRecords(db *gorm.DB, questionIDs ...string) {
	db.Where("question_id IN ?", questionIDs).Delete(&models.MarkingRecord{})
}

func testRecord(t *testing.T, batchID, questionID string, mark float64, markMax int) *models.MarkingRecord {
	t.Helper()
	markedAt := time.Now().UTC().Truncate(time.Second)
	record, err := models.NewMarkingRecord(&models.MarkingResult{
		QuestionID:   questionID,
		QuestionType: models.MCQ,
		BatchID:      batchID,
		UserAnswer:   models.TextAnswer("B"),
		MarkMax:      markMax,
		UserMark:     models.MarkPtr(mark),
		IsMarked:     true,
		MarkedAt:     &markedAt,
		AnnotatedAnswer: models.AnnotatedAnswer{Pairs: []models.AnswerPair{
			{CorrectAnswer: "B", UserAnswer: "B", IsCorrect: mark > 0},
		}},
	}, models.SessionPractice)
	require.NoError(t, err)
	return record
}

func TestMarkingResultPostgreSQL_UpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewMarkingResultPostgreSQL(db)
	ctx := context.Background()

	batchID := uuid.NewString()
	questionID := "q-" + uuid.NewString()
	t.Cleanup(func() { deleteRecords(db, questionID) })

	require.NoError(t, repo.Upsert(ctx, nil, testRecord(t, batchID, questionID, 0, 2)))
	require.NoError(t, repo.Upsert(ctx, nil, testRecord(t, batchID, questionID, 2, 2)), "saving twice replaces the row")

	record, err := repo.GetByQuestionID(ctx, nil, questionID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 2.0, *record.UserMark)

	result, err := record.ToResult()
	require.NoError(t, err)
	assert.Equal(t, "B", result.UserAnswer.Text)
	require.Len(t, result.AnnotatedAnswer.Pairs, 1)
	assert.True(t, result.AnnotatedAnswer.Pairs[0].IsCorrect)

	missing, err := repo.GetByQuestionID(ctx, nil, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMarkingResultPostgreSQL_ListAndStats(t *testing.T) {
	db := openTestDB(t)
	repo := NewMarkingResultPostgreSQL(db)
	ctx := context.Background()

	batchID := uuid.NewString()
	ids := []string{"q-" + uuid.NewString(), "q-" + uuid.NewString()}
	t.Cleanup(func() { deleteRecords(db, ids...) })
	require.NoError(t, repo.Upsert(ctx, nil, testRecord(t, batchID, ids[0], 2, 2)))
	require.NoError(t, repo.Upsert(ctx, nil, testRecord(t, batchID, ids[1], 1, 4)))

	records, total, err := repo.List(ctx, nil, repositories.MarkingResultFilters{BatchID: batchID, SortBy: "user_mark", SortOrder: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, records, 2)
	assert.Equal(t, ids[1], records[0].QuestionID)

	byBatch, err := repo.GetByBatch(ctx, nil, batchID)
	require.NoError(t, err)
	assert.Len(t, byBatch, 2)

	stats, err := repo.GetBatchStats(ctx, nil, batchID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQuestions)
	assert.Equal(t, 2, stats.MarkedCount)
	assert.Equal(t, 3.0, stats.TotalMark)
	assert.Equal(t, 6, stats.TotalMarkMax)
	assert.InDelta(t, 50.0, stats.Percentage, 0.001)
}

func TestPageLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"unset uses default", 0, 20},
		{"negative uses default", -5, 20},
		{"within range kept", 50, 50},
		{"at max kept", 100, 100},
		{"above max clamped", 250, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageLimit(tt.limit))
		})
	}
}
