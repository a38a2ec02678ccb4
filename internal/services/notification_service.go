package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
	"github.com/SAP-F-2025/marking-service/internal/events"
	"github.com/SAP-F-2025/marking-service/internal/models"
)

const defaultNotificationBacklog = 50

// NotificationService publishes marking outcomes as events and keeps the
// recent user-facing notifications for the UI to poll.
type NotificationService interface {
	Notifier
	Recent(limit int) []Notification
}

type notificationService struct {
	eventPublisher events.EventPublisher
	logger         *slog.Logger

	mu      sync.Mutex
	backlog int
	recent  []Notification
}

func NewNotificationService(eventPublisher events.EventPublisher, logger *slog.Logger) NotificationService {
	return &notificationService{
		eventPublisher: eventPublisher,
		logger:         logger,
		backlog:        defaultNotificationBacklog,
	}
}

func (s *notificationService) QuestionMarked(ctx context.Context, batchID string, result *models.MarkingResult) {
	s.publish(ctx, events.NewQuestionMarkedEvent(events.QuestionMarkedEvent{
		BatchID:      batchID,
		QuestionID:   result.QuestionID,
		QuestionType: string(result.QuestionType),
		UserMark:     result.UserMark,
		MarkMax:      result.MarkMax,
		IsMarked:     result.IsMarked,
		Remote:       result.QuestionType.RequiresRemoteMarking(),
	}))
}

func (s *notificationService) QuestionFailed(ctx context.Context, batchID string, questionType models.QuestionType, failure *apperrors.MarkingError) {
	s.publish(ctx, events.NewQuestionFailedEvent(events.QuestionFailedEvent{
		BatchID:      batchID,
		QuestionID:   failure.QuestionID,
		QuestionType: string(questionType),
		Kind:         string(failure.Kind),
		Reason:       failure.Err.Error(),
	}))
}

func (s *notificationService) BatchSettled(ctx context.Context, report BatchReport) {
	s.publish(ctx, events.NewBatchSettledEvent(events.BatchSettledEvent{
		BatchID:   report.BatchID,
		Status:    string(report.Status),
		Expected:  report.Expected,
		Received:  report.Received,
		Failed:    report.Failed,
		SettledAt: time.Now(),
	}))
}

// NotifyUser records n for the UI and publishes it.
func (s *notificationService) NotifyUser(ctx context.Context, n Notification) {
	s.mu.Lock()
	s.recent = append(s.recent, n)
	if len(s.recent) > s.backlog {
		s.recent = append([]Notification(nil), s.recent[len(s.recent)-s.backlog:]...)
	}
	s.mu.Unlock()

	s.publish(ctx, events.NewUserNotificationEvent(events.UserNotificationEvent{
		Level:      n.Level,
		Title:      n.Title,
		Message:    n.Message,
		BatchID:    n.BatchID,
		QuestionID: n.QuestionID,
	}))
}

// Recent returns up to limit notifications, newest first.
func (s *notificationService) Recent(limit int) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]Notification, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// publish logs and swallows failures; a lost outcome event never fails marking.
func (s *notificationService) publish(ctx context.Context, event *events.MarkingEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.PublishMarkingEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish marking event",
			"event_type", event.Type,
			"error", err)
	}
}
