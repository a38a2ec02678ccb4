package repositories

import (
	"time"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type MarkingResultFilters struct {
	BatchID      string               `json:"batch_id"`
	SessionKind  *models.SessionKind  `json:"session_kind"`
	QuestionType *models.QuestionType `json:"question_type"`
	IsMarked     *bool                `json:"is_marked"`
	DateFrom     *time.Time           `json:"date_from"`
	DateTo       *time.Time           `json:"date_to"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
	SortBy       string               `json:"sort_by"`    // "marked_at", "created_at", "user_mark"
	SortOrder    string               `json:"sort_order"` // "asc", "desc"
}

// ===== SHARED STATISTICS STRUCTS =====

type BatchStats struct {
	BatchID        string  `json:"batch_id"`
	TotalQuestions int     `json:"total_questions"`
	MarkedCount    int     `json:"marked_count"`
	TotalMark      float64 `json:"total_mark"`
	TotalMarkMax   int     `json:"total_mark_max"`
	Percentage     float64 `json:"percentage"`
}
