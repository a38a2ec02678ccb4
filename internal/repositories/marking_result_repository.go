package repositories

import (
	"context"

	"github.com/SAP-F-2025/marking-service/internal/models"
	"gorm.io/gorm"
)

// MarkingResultRepository stores finished marking results, one row per question.
type MarkingResultRepository interface {
	// Upsert inserts the record or replaces the stored one for the same question.
	Upsert(ctx context.Context, tx *gorm.DB, record *models.MarkingRecord) error
	GetByQuestionID(ctx context.Context, tx *gorm.DB, questionID string) (*models.MarkingRecord, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters MarkingResultFilters) ([]*models.MarkingRecord, int64, error)
	GetByBatch(ctx context.Context, tx *gorm.DB, batchID string) ([]*models.MarkingRecord, error)

	// Statistics
	GetBatchStats(ctx context.Context, tx *gorm.DB, batchID string) (*BatchStats, error)
}
