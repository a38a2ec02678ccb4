package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of marking events
type EventType string

const (
	// Question events
	EventQuestionMarked EventType = "marking.question_marked"
	EventQuestionFailed EventType = "marking.question_failed"

	// Batch events
	EventBatchSettled EventType = "marking.batch_settled"

	// User-facing notifications
	EventUserNotification EventType = "marking.user_notification"
)

const (
	eventSource  = "marking-service"
	eventVersion = "1.0"
)

// MarkingEvent is the base event structure for all marking events
type MarkingEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type QuestionMarkedEvent struct {
	BatchID      string   `json:"batch_id"`
	QuestionID   string   `json:"question_id"`
	QuestionType string   `json:"question_type"`
	UserMark     *float64 `json:"user_mark,omitempty"`
	MarkMax      int      `json:"mark_max"`
	IsMarked     bool     `json:"is_marked"`
	Remote       bool     `json:"remote"`
}

type QuestionFailedEvent struct {
	BatchID      string `json:"batch_id"`
	QuestionID   string `json:"question_id"`
	QuestionType string `json:"question_type,omitempty"`
	Kind         string `json:"kind"`
	Reason       string `json:"reason"`
}

type BatchSettledEvent struct {
	BatchID   string    `json:"batch_id"`
	Status    string    `json:"status"`
	Expected  int       `json:"expected"`
	Received  int       `json:"received"`
	Failed    []string  `json:"failed,omitempty"`
	SettledAt time.Time `json:"settled_at"`
}

type NotificationLevel string

const (
	LevelInfo  NotificationLevel = "info"
	LevelError NotificationLevel = "error"
)

type UserNotificationEvent struct {
	Level      NotificationLevel `json:"level"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	BatchID    string            `json:"batch_id,omitempty"`
	QuestionID string            `json:"question_id,omitempty"`
}

// Event factory functions

func newEvent(eventType EventType, data interface{}) *MarkingEvent {
	return &MarkingEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewQuestionMarkedEvent(data QuestionMarkedEvent) *MarkingEvent {
	return newEvent(EventQuestionMarked, data)
}

func NewQuestionFailedEvent(data QuestionFailedEvent) *MarkingEvent {
	return newEvent(EventQuestionFailed, data)
}

func NewBatchSettledEvent(data BatchSettledEvent) *MarkingEvent {
	return newEvent(EventBatchSettled, data)
}

func NewUserNotificationEvent(data UserNotificationEvent) *MarkingEvent {
	return newEvent(EventUserNotification, data)
}

// GenerateEventID returns a random event id.
func GenerateEventID() string {
	return uuid.NewString()
}
