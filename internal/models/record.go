package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// MarkingRecord is the stored form of a finished MarkingResult.
type MarkingRecord struct {
	QuestionID   string       `json:"question_id" gorm:"primaryKey;size:255"`
	BatchID      string       `json:"batch_id" gorm:"size:64;index"`
	QuestionType QuestionType `json:"question_type" gorm:"not null;size:50"`
	SessionKind  SessionKind  `json:"session_kind" gorm:"not null;size:20;index"`

	// Scoring
	MarkMax  int      `json:"mark_max" gorm:"not null"`
	UserMark *float64 `json:"user_mark"`
	IsMarked bool     `json:"is_marked" gorm:"default:false"`

	// Content
	UserAnswer      datatypes.JSON `json:"user_answer" gorm:"type:jsonb"`
	AnnotatedAnswer datatypes.JSON `json:"annotated_answer" gorm:"type:jsonb"`
	MarkingTable    string         `json:"marking_table" gorm:"type:text"`
	Annotations     datatypes.JSON `json:"annotations" gorm:"type:jsonb"`
	AOAnalysis      datatypes.JSON `json:"ao_analysis" gorm:"type:jsonb"`

	MarkedAt  *time.Time `json:"marked_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (MarkingRecord) TableName() string {
	return "marking_results"
}

// NewMarkingRecord converts a result into its stored form.
func NewMarkingRecord(result *MarkingResult, kind SessionKind) (*MarkingRecord, error) {
	userAnswer, err := json.Marshal(result.UserAnswer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user answer: %w", err)
	}
	annotated, err := json.Marshal(result.AnnotatedAnswer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotated answer: %w", err)
	}
	annotations, err := json.Marshal(result.Annotations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotations: %w", err)
	}

	record := &MarkingRecord{
		QuestionID:      result.QuestionID,
		BatchID:         result.BatchID,
		QuestionType:    result.QuestionType,
		SessionKind:     kind,
		MarkMax:         result.MarkMax,
		UserMark:        result.UserMark,
		IsMarked:        result.IsMarked,
		UserAnswer:      datatypes.JSON(userAnswer),
		AnnotatedAnswer: datatypes.JSON(annotated),
		MarkingTable:    result.MarkingTable,
		Annotations:     datatypes.JSON(annotations),
		MarkedAt:        result.MarkedAt,
	}
	if len(result.AOAnalysis) > 0 {
		record.AOAnalysis = datatypes.JSON(result.AOAnalysis)
	}
	return record, nil
}

// ToResult converts a stored record back into a MarkingResult.
func (r *MarkingRecord) ToResult() (*MarkingResult, error) {
	result := &MarkingResult{
		QuestionID:   r.QuestionID,
		QuestionType: r.QuestionType,
		BatchID:      r.BatchID,
		MarkingTable: r.MarkingTable,
		MarkMax:      r.MarkMax,
		UserMark:     r.UserMark,
		IsMarked:     r.IsMarked,
		MarkedAt:     r.MarkedAt,
	}
	if len(r.UserAnswer) > 0 {
		if err := json.Unmarshal(r.UserAnswer, &result.UserAnswer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user answer: %w", err)
		}
	}
	if len(r.AnnotatedAnswer) > 0 {
		if err := json.Unmarshal(r.AnnotatedAnswer, &result.AnnotatedAnswer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal annotated answer: %w", err)
		}
	}
	if len(r.Annotations) > 0 {
		if err := json.Unmarshal(r.Annotations, &result.Annotations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal annotations: %w", err)
		}
	}
	if len(r.AOAnalysis) > 0 {
		result.AOAnalysis = json.RawMessage(r.AOAnalysis)
	}
	return result, nil
}
