package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
	"github.com/SAP-F-2025/marking-service/internal/models"
	"github.com/SAP-F-2025/marking-service/internal/repositories"
	"github.com/SAP-F-2025/marking-service/internal/services"
	"github.com/SAP-F-2025/marking-service/internal/utils"
	"github.com/SAP-F-2025/marking-service/internal/validator"
)

// MockMarkingService is a mock implementation of MarkingService
type MockMarkingService struct {
	mock.Mock
}

func (m *MockMarkingService) Submit(ctx context.Context, req *services.SubmitBatchRequest) (*services.SubmitBatchResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*services.SubmitBatchResponse)
	return resp, args.Error(1)
}

func (m *MockMarkingService) State() services.MarkingState {
	args := m.Called()
	return args.Get(0).(services.MarkingState)
}

func (m *MockMarkingService) Result(ctx context.Context, questionID string) (*models.MarkingResult, error) {
	args := m.Called(ctx, questionID)
	result, _ := args.Get(0).(*models.MarkingResult)
	return result, args.Error(1)
}

func (m *MockMarkingService) Clear() {
	m.Called()
}

func (m *MockMarkingService) History(ctx context.Context, filters repositories.MarkingResultFilters) ([]*models.MarkingResult, int64, error) {
	args := m.Called(ctx, filters)
	results, _ := args.Get(0).([]*models.MarkingResult)
	return results, args.Get(1).(int64), args.Error(2)
}

func (m *MockMarkingService) BatchStats(ctx context.Context, batchID string) (*repositories.BatchStats, error) {
	args := m.Called(ctx, batchID)
	stats, _ := args.Get(0).(*repositories.BatchStats)
	return stats, args.Error(1)
}

func (m *MockMarkingService) Export(ctx context.Context, batchID string) ([]byte, error) {
	args := m.Called(ctx, batchID)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockMarkingService) Notifications(limit int) []services.Notification {
	args := m.Called(limit)
	return args.Get(0).([]services.Notification)
}

func setupRouter(t *testing.T) (*gin.Engine, *MockMarkingService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := new(MockMarkingService)
	logger := utils.NewDefaultLogger()
	router := NewRouter(NewHandlerManager(svc, validator.New(), logger), logger)
	return router, svc
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func markedResult(id string, mark float64) *models.MarkingResult {
	return &models.MarkingResult{
		QuestionID:   id,
		QuestionType: models.MCQ,
		UserAnswer:   models.TextAnswer("B"),
		MarkMax:      2,
		UserMark:     models.MarkPtr(mark),
		IsMarked:     true,
	}
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))
}

func TestMarkingHandler_SubmitBatch(t *testing.T) {
	t.Run("accepted without wait", func(t *testing.T) {
		router, svc := setupRouter(t)
		svc.On("Submit", mock.Anything, mock.MatchedBy(func(req *services.SubmitBatchRequest) bool {
			return len(req.Questions) == 1 && !req.Wait
		})).Return(&services.SubmitBatchResponse{
			BatchID: "batch-1",
			State:   services.MarkingState{BatchID: "batch-1", Status: services.BatchMarking, IsMarking: true},
		}, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/marking/batches", map[string]interface{}{
			"questions": []map[string]interface{}{{"question_id": "q1", "question_type": "mcq"}},
		})

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"batch_id":"batch-1"`)
		svc.AssertExpectations(t)
	})

	t.Run("ok when waited", func(t *testing.T) {
		router, svc := setupRouter(t)
		svc.On("Submit", mock.Anything, mock.Anything).Return(&services.SubmitBatchResponse{
			BatchID: "batch-2",
			Report:  &services.BatchReport{BatchID: "batch-2", Status: services.BatchComplete},
		}, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/marking/batches", map[string]interface{}{
			"questions": []map[string]interface{}{{"question_id": "q1", "question_type": "mcq"}},
			"wait":      true,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"complete"`)
	})

	t.Run("malformed payload", func(t *testing.T) {
		router, svc := setupRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/marking/batches", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			name   string
			err    error
			status int
		}{
			{"empty batch", services.ErrEmptyBatch, http.StatusBadRequest},
			{"too large", fmt.Errorf("%w: 201 > 200", services.ErrBatchTooLarge), http.StatusBadRequest},
			{"closed", fmt.Errorf("submit: %w", apperrors.ErrCoordinatorClosed), http.StatusServiceUnavailable},
			{"channel", apperrors.ErrChannelUnavailable, http.StatusServiceUnavailable},
			{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				router, svc := setupRouter(t)
				svc.On("Submit", mock.Anything, mock.Anything).Return(nil, tc.err)

				w := doRequest(router, http.MethodPost, "/api/v1/marking/batches", map[string]interface{}{"questions": []interface{}{}})
				assert.Equal(t, tc.status, w.Code)
			})
		}
	})
}

func TestMarkingHandler_StateAndResults(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("State").Return(services.MarkingState{
		BatchID:  "batch-1",
		Status:   services.BatchComplete,
		IsMarked: true,
		Results:  []*models.MarkingResult{markedResult("q1", 2)},
	})
	svc.On("Result", mock.Anything, "q1").Return(markedResult("q1", 2), nil)
	svc.On("Result", mock.Anything, "missing").Return(nil, services.ErrResultNotFound)
	svc.On("Clear").Return()

	w := doRequest(router, http.MethodGet, "/api/v1/marking/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state services.MarkingState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.IsMarked)
	require.Len(t, state.Results, 1)
	assert.Equal(t, 2.0, *state.Results[0].UserMark)

	w = doRequest(router, http.MethodGet, "/api/v1/marking/results/q1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"question_id":"q1"`)

	w = doRequest(router, http.MethodGet, "/api/v1/marking/results/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/marking/results", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertCalled(t, "Clear")
}

func TestMarkingHandler_ListResults(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("History", mock.Anything, mock.MatchedBy(func(f repositories.MarkingResultFilters) bool {
		return f.BatchID == "batch-1" &&
			f.SessionKind != nil && *f.SessionKind == models.SessionMock &&
			f.IsMarked != nil && *f.IsMarked &&
			f.Limit == 10 && f.SortOrder == "asc"
	})).Return([]*models.MarkingResult{markedResult("q1", 1)}, int64(1), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/marking/results?batch_id=batch-1&session_kind=mock&is_marked=true&limit=10&sort_order=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []*models.MarkingResult `json:"items"`
		Total int64                   `json:"total"`
		Limit int                     `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body.Total)
	assert.Equal(t, 10, body.Limit)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "q1", body.Items[0].QuestionID)

	invalid := []string{
		"/api/v1/marking/results?session_kind=exam",
		"/api/v1/marking/results?question_type=essay_plus",
		"/api/v1/marking/results?limit=500",
		"/api/v1/marking/results?sort_order=sideways",
		"/api/v1/marking/results?limit=abc",
	}
	for _, path := range invalid {
		w := doRequest(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	svc.AssertNumberOfCalls(t, "History", 1)
}

func TestMarkingHandler_BatchStats(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("BatchStats", mock.Anything, "batch-1").Return(&repositories.BatchStats{
		BatchID:        "batch-1",
		TotalQuestions: 3,
		MarkedCount:    2,
		TotalMark:      3,
		TotalMarkMax:   4,
		Percentage:     75,
	}, nil)
	svc.On("BatchStats", mock.Anything, "nope").Return(nil, services.ErrBatchNotFound)

	w := doRequest(router, http.MethodGet, "/api/v1/marking/batches/batch-1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats repositories.BatchStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 75.0, stats.Percentage)

	w = doRequest(router, http.MethodGet, "/api/v1/marking/batches/nope/stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkingHandler_ExportResults(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("Export", mock.Anything, "").Return([]byte("PK-live"), nil)
	svc.On("Export", mock.Anything, "batch-1").Return([]byte("PK-batch"), nil)
	svc.On("Export", mock.Anything, "gone").Return(nil, services.ErrBatchNotFound)

	w := doRequest(router, http.MethodPost, "/api/v1/marking/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PK-live", w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "marking-results-")

	w = doRequest(router, http.MethodPost, "/api/v1/marking/export", ExportRequest{BatchID: "batch-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PK-batch", w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/v1/marking/export", ExportRequest{BatchID: "gone"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkingHandler_ListNotifications(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("Notifications", 5).Return([]services.Notification{{Title: "Marking failed", Message: "try again"}})

	w := doRequest(router, http.MethodGet, "/api/v1/marking/notifications?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Marking failed")

	w = doRequest(router, http.MethodGet, "/api/v1/marking/notifications?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
