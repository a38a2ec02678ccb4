package postgres

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/marking-service/internal/models"
	"github.com/SAP-F-2025/marking-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarkingResultPostgreSQL struct {
	db *gorm.DB
}

func NewMarkingResultPostgreSQL(db *gorm.DB) repositories.MarkingResultRepository {
	return &MarkingResultPostgreSQL{db: db}
}

// Migrate creates or updates the marking_results table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.MarkingRecord{})
}

func (m MarkingResultPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, record *models.MarkingRecord) error {
	db := m.getDB(tx)
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"batch_id", "question_type", "session_kind",
			"mark_max", "user_mark", "is_marked",
			"user_answer", "annotated_answer", "marking_table", "annotations", "ao_analysis",
			"marked_at", "updated_at",
		}),
	}).Create(record).Error
}

func (m MarkingResultPostgreSQL) GetByQuestionID(ctx context.Context, tx *gorm.DB, questionID string) (*models.MarkingRecord, error) {
	db := m.getDB(tx)
	var record models.MarkingRecord
	if err := db.WithContext(ctx).Where("question_id = ?", questionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (m MarkingResultPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.MarkingResultFilters) ([]*models.MarkingRecord, int64, error) {
	var records []*models.MarkingRecord
	var total int64

	// apply filter first
	query := m.getDB(tx).WithContext(ctx).Model(&models.MarkingRecord{})
	query = m.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = m.applyPaginationAndSort(query, filters)

	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (m MarkingResultPostgreSQL) GetByBatch(ctx context.Context, tx *gorm.DB, batchID string) ([]*models.MarkingRecord, error) {
	var records []*models.MarkingRecord
	if err := m.getDB(tx).WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (m MarkingResultPostgreSQL) GetBatchStats(ctx context.Context, tx *gorm.DB, batchID string) (*repositories.BatchStats, error) {
	var row struct {
		TotalQuestions int
		MarkedCount    int
		TotalMark      float64
		TotalMarkMax   int
	}
	err := m.getDB(tx).WithContext(ctx).
		Model(&models.MarkingRecord{}).
		Select(`COUNT(*) AS total_questions,
			COUNT(*) FILTER (WHERE is_marked) AS marked_count,
			COALESCE(SUM(user_mark) FILTER (WHERE is_marked), 0) AS total_mark,
			COALESCE(SUM(mark_max) FILTER (WHERE is_marked), 0) AS total_mark_max`).
		Where("batch_id = ?", batchID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &repositories.BatchStats{
		BatchID:        batchID,
		TotalQuestions: row.TotalQuestions,
		MarkedCount:    row.MarkedCount,
		TotalMark:      row.TotalMark,
		TotalMarkMax:   row.TotalMarkMax,
	}
	if row.TotalMarkMax > 0 {
		stats.Percentage = row.TotalMark / float64(row.TotalMarkMax) * 100
	}
	return stats, nil
}

func (m MarkingResultPostgreSQL) applyFilters(query *gorm.DB, filters repositories.MarkingResultFilters) *gorm.DB {
	if filters.BatchID != "" {
		query = query.Where("batch_id = ?", filters.BatchID)
	}
	if filters.SessionKind != nil {
		query = query.Where("session_kind = ?", *filters.SessionKind)
	}
	if filters.QuestionType != nil {
		query = query.Where("question_type = ?", *filters.QuestionType)
	}
	if filters.IsMarked != nil {
		query = query.Where("is_marked = ?", *filters.IsMarked)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// pageLimit defaults an unset limit and clamps oversized ones.
func pageLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageLimit
	case limit > maxPageLimit:
		return maxPageLimit
	}
	return limit
}

func (m MarkingResultPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.MarkingResultFilters) *gorm.DB {
	sortBy := "created_at"
	switch filters.SortBy {
	case "marked_at", "created_at", "user_mark":
		sortBy = filters.SortBy
	}
	desc := filters.SortOrder != "asc"
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: desc})

	query = query.Limit(pageLimit(filters.Limit))
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

func (m MarkingResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return m.db
}
