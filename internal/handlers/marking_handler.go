package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
	"github.com/SAP-F-2025/marking-service/internal/models"
	"github.com/SAP-F-2025/marking-service/internal/repositories"
	"github.com/SAP-F-2025/marking-service/internal/services"
	"github.com/SAP-F-2025/marking-service/internal/utils"
	"github.com/SAP-F-2025/marking-service/internal/validator"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type MarkingHandler struct {
	BaseHandler
	markingService services.MarkingService
	validator      *validator.Validator
}

// ListResultsQuery filters stored results
type ListResultsQuery struct {
	BatchID      string     `form:"batch_id" json:"batch_id"`
	SessionKind  string     `form:"session_kind" json:"session_kind" validate:"omitempty,session_kind"`
	QuestionType string     `form:"question_type" json:"question_type" validate:"omitempty,question_type"`
	IsMarked     *bool      `form:"is_marked" json:"is_marked"`
	DateFrom     *time.Time `form:"date_from" json:"date_from" time_format:"2006-01-02T15:04:05Z07:00"`
	DateTo       *time.Time `form:"date_to" json:"date_to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit        int        `form:"limit" json:"limit" validate:"min=0,max=100"`
	Offset       int        `form:"offset" json:"offset" validate:"min=0"`
	SortBy       string     `form:"sort_by" json:"sort_by" validate:"omitempty,oneof=marked_at created_at user_mark"`
	SortOrder    string     `form:"sort_order" json:"sort_order" validate:"omitempty,oneof=asc desc"`
}

type ExportRequest struct {
	BatchID string `json:"batch_id"`
}

type NotificationsQuery struct {
	Limit int `form:"limit" json:"limit" validate:"min=0,max=50"`
}

func NewMarkingHandler(
	markingService services.MarkingService,
	validator *validator.Validator,
	logger utils.Logger,
) *MarkingHandler {
	return &MarkingHandler{
		BaseHandler:    NewBaseHandler(logger),
		markingService: markingService,
		validator:      validator,
	}
}

// SubmitBatch starts marking a batch of questions
// @Summary Submit marking batch
// @Description Marks every question of the batch; a batch in flight is superseded
// @Tags marking
// @Accept json
// @Produce json
// @Param batch body services.SubmitBatchRequest true "Questions to mark"
// @Success 200 {object} SuccessResponse{data=services.SubmitBatchResponse}
// @Success 202 {object} SuccessResponse{data=services.SubmitBatchResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /marking/batches [post]
func (h *MarkingHandler) SubmitBatch(c *gin.Context) {
	var req services.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting marking batch", "questions", len(req.Questions), "wait", req.Wait)

	resp, err := h.markingService.Submit(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusAccepted
	if resp.Report != nil {
		status = http.StatusOK
	}
	h.RespondWithSuccess(c, status, "Marking batch submitted", resp, "batch_id", resp.BatchID)
}

// GetState returns the observable marking state
// @Summary Get marking state
// @Tags marking
// @Produce json
// @Success 200 {object} services.MarkingState
// @Router /marking/state [get]
func (h *MarkingHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.markingService.State())
}

// GetResult returns one question's live or stored result
// @Summary Get marking result
// @Tags marking
// @Produce json
// @Param question_id path string true "Question ID"
// @Success 200 {object} models.MarkingResult
// @Failure 404 {object} ErrorResponse
// @Router /marking/results/{question_id} [get]
func (h *MarkingHandler) GetResult(c *gin.Context) {
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	result, err := h.markingService.Result(c.Request.Context(), questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClearResults discards the live results and the last error
// @Summary Clear marking results
// @Tags marking
// @Success 204
// @Router /marking/results [delete]
func (h *MarkingHandler) ClearResults(c *gin.Context) {
	h.LogRequest(c, "Clearing live marking results")
	h.markingService.Clear()
	c.Status(http.StatusNoContent)
}

// ListResults lists stored results
// @Summary List stored marking results
// @Tags marking
// @Produce json
// @Param batch_id query string false "Batch ID"
// @Param session_kind query string false "practice, mock or paper"
// @Param question_type query string false "Question type"
// @Param is_marked query bool false "Only marked or unmarked results"
// @Param date_from query string false "RFC 3339 lower bound on created_at"
// @Param date_to query string false "RFC 3339 upper bound on created_at"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} ListResponse{items=[]models.MarkingResult}
// @Failure 400 {object} ErrorResponse
// @Router /marking/results [get]
func (h *MarkingHandler) ListResults(c *gin.Context) {
	var query ListResultsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err,
		})
		return
	}

	filters := repositories.MarkingResultFilters{
		BatchID:   query.BatchID,
		IsMarked:  query.IsMarked,
		DateFrom:  query.DateFrom,
		DateTo:    query.DateTo,
		Limit:     query.Limit,
		Offset:    query.Offset,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.SessionKind != "" {
		kind := models.SessionKind(query.SessionKind)
		filters.SessionKind = &kind
	}
	if query.QuestionType != "" {
		qType := models.QuestionType(query.QuestionType)
		filters.QuestionType = &qType
	}

	results, total, err := h.markingService.History(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{
		Items:  results,
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

// GetBatchStats returns the totals of a stored batch
// @Summary Get batch statistics
// @Tags marking
// @Produce json
// @Param batch_id path string true "Batch ID"
// @Success 200 {object} repositories.BatchStats
// @Failure 404 {object} ErrorResponse
// @Router /marking/batches/{batch_id}/stats [get]
func (h *MarkingHandler) GetBatchStats(c *gin.Context) {
	batchID := ParseStringIDParam(c, "batch_id")
	if batchID == "" {
		return
	}

	stats, err := h.markingService.BatchStats(c.Request.Context(), batchID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportResults downloads results as an xlsx workbook
// @Summary Export marking results
// @Description Exports the stored results of a batch, or the live results when no batch is given
// @Tags marking
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param export body ExportRequest false "Batch to export"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /marking/export [post]
func (h *MarkingHandler) ExportResults(c *gin.Context) {
	var req ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	h.LogRequest(c, "Exporting marking results", "batch_id", req.BatchID)

	data, err := h.markingService.Export(c.Request.Context(), req.BatchID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("marking-results-%s.xlsx", time.Now().Format("20060102-150405"))
	SetAttachment(c, filename, xlsxContentType)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ListNotifications returns recent user-facing notifications, newest first
// @Summary List notifications
// @Tags marking
// @Produce json
// @Param limit query int false "Maximum notifications"
// @Success 200 {array} services.Notification
// @Router /marking/notifications [get]
func (h *MarkingHandler) ListNotifications(c *gin.Context) {
	var query NotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err,
		})
		return
	}
	c.JSON(http.StatusOK, h.markingService.Notifications(query.Limit))
}

func (h *MarkingHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	// Handle specific marking errors
	switch {
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
			Code:    "not_found",
		})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: err.Error(),
			Code:    "bad_request",
		})
	case errors.Is(err, apperrors.ErrCoordinatorClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Marking is shutting down",
			Code:    "unavailable",
		})
	case services.IsUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Marking service unavailable",
			Code:    "unavailable",
		})
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
