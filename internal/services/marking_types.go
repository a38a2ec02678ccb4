package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/marking-service/internal/channel"
	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
	"github.com/SAP-F-2025/marking-service/internal/events"
	"github.com/SAP-F-2025/marking-service/internal/models"
)

// MarkingChannel is the remote marker as the coordinator sees it.
// *channel.Session implements it.
type MarkingChannel interface {
	Send(ctx context.Context, op channel.MessageType, req channel.MarkRequest) error
	Reconnect(ctx context.Context) error
	Events() <-chan channel.Event
}

// Persister stores a finished result. Implementations must tolerate the
// same result being saved more than once.
type Persister interface {
	SaveResult(ctx context.Context, result *models.MarkingResult, kind models.SessionKind) error
}

// LiveView mirrors the coordinator's live results somewhere readable by
// other processes.
type LiveView interface {
	PutResult(ctx context.Context, result *models.MarkingResult) error
	ClearResults(ctx context.Context) error
}

// LiveResultReader reads results back from a LiveView mirror. A miss
// returns nil without error.
type LiveResultReader interface {
	GetResult(ctx context.Context, questionID string) (*models.MarkingResult, error)
}

// Notifier receives marking outcomes and user-facing notifications.
type Notifier interface {
	QuestionMarked(ctx context.Context, batchID string, result *models.MarkingResult)
	QuestionFailed(ctx context.Context, batchID string, questionType models.QuestionType, failure *apperrors.MarkingError)
	BatchSettled(ctx context.Context, report BatchReport)
	NotifyUser(ctx context.Context, n Notification)
}

// Notification is one toast-style message for the learner.
type Notification struct {
	Level      events.NotificationLevel `json:"level"`
	Title      string                   `json:"title"`
	Message    string                   `json:"message"`
	BatchID    string                   `json:"batch_id,omitempty"`
	QuestionID string                   `json:"question_id,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

type BatchStatus string

const (
	BatchIdle       BatchStatus = "idle"
	BatchMarking    BatchStatus = "marking"
	BatchComplete   BatchStatus = "complete"
	BatchTimedOut   BatchStatus = "timed_out"
	BatchSuperseded BatchStatus = "superseded"
	BatchClosed     BatchStatus = "closed"
)

// BatchReport is delivered once per batch when it settles.
type BatchReport struct {
	BatchID  string      `json:"batch_id"`
	Status   BatchStatus `json:"status"`
	Expected int         `json:"expected"`
	Received int         `json:"received"`
	Failed   []string    `json:"failed,omitempty"`
}

// MarkingState is a point-in-time copy of the coordinator's observable state.
type MarkingState struct {
	BatchID   string                  `json:"batch_id,omitempty"`
	Status    BatchStatus             `json:"status"`
	IsMarking bool                    `json:"is_marking"`
	IsMarked  bool                    `json:"is_marked"`
	Results   []*models.MarkingResult `json:"results"`
	Error     string                  `json:"error,omitempty"`
}

// CoordinatorConfig holds coordinator timing and identity settings.
type CoordinatorConfig struct {
	QuestionTimeout time.Duration
	GroupTimeout    time.Duration
	ConnectWait     time.Duration
	SpecificationID string
	SessionKind     models.SessionKind
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.QuestionTimeout <= 0 {
		c.QuestionTimeout = 60 * time.Second
	}
	if c.GroupTimeout <= 0 {
		c.GroupTimeout = 60 * time.Second
	}
	if c.ConnectWait <= 0 {
		c.ConnectWait = 3 * time.Second
	}
	if c.SessionKind == "" {
		c.SessionKind = models.SessionPractice
	}
	return c
}
