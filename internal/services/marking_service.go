package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/marking-service/internal/models"
	"github.com/SAP-F-2025/marking-service/internal/repositories"
	"github.com/SAP-F-2025/marking-service/internal/validator"
)

const maxBatchSize = 200

// SubmitBatchRequest is one batch as submitted over HTTP.
type SubmitBatchRequest struct {
	Questions []models.QuestionMarkingContext `json:"questions"`
	// Wait blocks until the batch settles instead of returning right away.
	Wait bool `json:"wait"`
}

type SubmitBatchResponse struct {
	BatchID string       `json:"batch_id"`
	Report  *BatchReport `json:"report,omitempty"`
	State   MarkingState `json:"state"`
}

// MarkingService is the application surface over the coordinator and the
// stored results.
type MarkingService interface {
	Submit(ctx context.Context, req *SubmitBatchRequest) (*SubmitBatchResponse, error)
	State() MarkingState
	Result(ctx context.Context, questionID string) (*models.MarkingResult, error)
	Clear()

	History(ctx context.Context, filters repositories.MarkingResultFilters) ([]*models.MarkingResult, int64, error)
	BatchStats(ctx context.Context, batchID string) (*repositories.BatchStats, error)
	Export(ctx context.Context, batchID string) ([]byte, error)
	Notifications(limit int) []Notification
}

type markingService struct {
	coordinator   *Coordinator
	live          LiveResultReader
	repo          repositories.MarkingResultRepository
	exporter      ExportService
	notifications NotificationService
	validator     *validator.Validator
	logger        *ServiceLogger
}

// NewMarkingService wires the marking surface. live and repo may be nil when
// no mirror or database is configured; history queries then report
// ErrNotFound.
func NewMarkingService(
	coordinator *Coordinator,
	live LiveResultReader,
	repo repositories.MarkingResultRepository,
	exporter ExportService,
	notifications NotificationService,
	validator *validator.Validator,
	logger *slog.Logger,
) MarkingService {
	return &markingService{
		coordinator:   coordinator,
		live:          live,
		repo:          repo,
		exporter:      exporter,
		notifications: notifications,
		validator:     validator,
		logger: NewServiceLogger(logger, LogConfig{
			Service:     "marking",
			Component:   "marking_service",
			EnableDebug: logger.Enabled(context.Background(), slog.LevelDebug),
		}),
	}
}

func (s *markingService) Submit(ctx context.Context, req *SubmitBatchRequest) (resp *SubmitBatchResponse, err error) {
	op := s.logger.WithOperation(ctx, "submit_batch")
	batchID := ""
	defer func() { op.LogResult(batchID, "batch", err) }()

	if len(req.Questions) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(req.Questions) > maxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(req.Questions), maxBatchSize)
	}

	batchID, reports, err := s.coordinator.SubmitBatch(ctx, req.Questions)
	if err != nil {
		return nil, err
	}

	resp = &SubmitBatchResponse{BatchID: batchID}
	if req.Wait {
		select {
		case report := <-reports:
			resp.Report = &report
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	resp.State = s.coordinator.State()
	return resp, nil
}

func (s *markingService) State() MarkingState {
	return s.coordinator.State()
}

// Result looks in this process's live results, then the shared mirror, then
// the stored results.
func (s *markingService) Result(ctx context.Context, questionID string) (result *models.MarkingResult, err error) {
	op := s.logger.WithOperation(ctx, "get_result")
	defer func() { op.LogResult(questionID, "marking_result", err) }()

	if live, ok := s.coordinator.Result(questionID); ok {
		return live, nil
	}
	if s.live != nil {
		mirrored, err := s.live.GetResult(ctx, questionID)
		if err != nil {
			s.logger.logger.WarnContext(ctx, "Live results mirror unreadable, using stored result",
				"question_id", questionID, "error", err)
		} else if mirrored != nil {
			return mirrored, nil
		}
	}
	if s.repo == nil {
		return nil, ErrResultNotFound
	}

	record, err := s.repo.GetByQuestionID(ctx, nil, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load marking result: %w", err)
	}
	if record == nil {
		return nil, ErrResultNotFound
	}
	return record.ToResult()
}

func (s *markingService) Clear() {
	s.coordinator.ClearResult()
}

func (s *markingService) History(ctx context.Context, filters repositories.MarkingResultFilters) (results []*models.MarkingResult, total int64, err error) {
	op := s.logger.WithOperation(ctx, "list_results")
	defer func() { op.LogResult(filters.BatchID, "marking_result", err) }()

	if s.repo == nil {
		return nil, 0, ErrNotFound
	}
	if filters.SessionKind != nil {
		if err := s.validator.Var(string(*filters.SessionKind), "session_kind"); err != nil {
			return nil, 0, fmt.Errorf("%w: session_kind %q", ErrBadRequest, *filters.SessionKind)
		}
	}

	records, total, err := s.repo.List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list marking results: %w", err)
	}
	results, err = toResults(records)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (s *markingService) BatchStats(ctx context.Context, batchID string) (*repositories.BatchStats, error) {
	if s.repo == nil {
		return nil, ErrNotFound
	}
	stats, err := s.repo.GetBatchStats(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch stats: %w", err)
	}
	if stats.TotalQuestions == 0 {
		return nil, ErrBatchNotFound
	}
	return stats, nil
}

// Export writes the results of batchID, or the live results when batchID is
// empty.
func (s *markingService) Export(ctx context.Context, batchID string) (data []byte, err error) {
	op := s.logger.WithOperation(ctx, "export_results")
	defer func() { op.LogResult(batchID, "batch", err) }()

	var results []*models.MarkingResult
	if batchID == "" {
		results = s.coordinator.State().Results
	} else {
		if s.repo == nil {
			return nil, ErrBatchNotFound
		}
		records, err := s.repo.GetByBatch(ctx, nil, batchID)
		if err != nil {
			return nil, fmt.Errorf("failed to load batch results: %w", err)
		}
		if results, err = toResults(records); err != nil {
			return nil, err
		}
	}
	if len(results) == 0 {
		return nil, ErrBatchNotFound
	}
	return s.exporter.ExportResults(ctx, results)
}

func (s *markingService) Notifications(limit int) []Notification {
	if s.notifications == nil {
		return []Notification{}
	}
	return s.notifications.Recent(limit)
}

func toResults(records []*models.MarkingRecord) ([]*models.MarkingResult, error) {
	results := make([]*models.MarkingResult, 0, len(records))
	for _, record := range records {
		result, err := record.ToResult()
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored result %s: %w", record.QuestionID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ResultPersister saves finished results through the repository.
type ResultPersister struct {
	repo repositories.MarkingResultRepository
}

func NewResultPersister(repo repositories.MarkingResultRepository) *ResultPersister {
	return &ResultPersister{repo: repo}
}

// SaveResult upserts by question id, so a repeated save is a no-op.
func (p *ResultPersister) SaveResult(ctx context.Context, result *models.MarkingResult, kind models.SessionKind) error {
	record, err := models.NewMarkingRecord(result, kind)
	if err != nil {
		return err
	}
	return p.repo.Upsert(ctx, nil, record)
}
