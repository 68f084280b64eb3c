package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/certprep/certprep-backend/internal/exam"
	"github.com/certprep/certprep-backend/internal/middleware"
	"github.com/certprep/certprep-backend/internal/model"
	"github.com/certprep/certprep-backend/internal/response"
	"github.com/certprep/certprep-backend/internal/service"
	"github.com/certprep/certprep-backend/internal/validator"
)

// ExamService is the subset of *service.ExamService the exam endpoints use.
type ExamService interface {
	CreateExam(ctx context.Context, owner model.Identity, req model.CreateExamRequest) (*exam.View, error)
	CreateRemediationExam(ctx context.Context, owner model.Identity, sourceID uuid.UUID) (*exam.View, error)
	StartExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error)
	PauseExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error)
	ResumeExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error)
	CancelExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error)
	SubmitAnswer(ctx context.Context, owner model.Identity, examID, questionID uuid.UUID, a exam.Answer) (*service.AnswerResult, error)
	CompleteExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.Results, error)
	DeleteExam(ctx context.Context, owner model.Identity, examID uuid.UUID) error
	GetExamByID(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error)
	GetExamResults(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.Results, error)
	GetExamAnalysis(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.Analysis, error)
	ListExams(ctx context.Context, owner model.Identity, page, perPage int) ([]model.ExamSummary, *response.Pagination, error)
}

var _ ExamService = (*service.ExamService)(nil)

// ExamHandler handles the candidate exam endpoints. Every route runs behind
// middleware.Identity, so an owner is always present.
type ExamHandler struct {
	examService ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// CreateExam godoc
// POST /api/v1/exams
// Draws a question snapshot and creates a not-started exam.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.examService.CreateExam(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": view})
}

// ListExams godoc
// GET /api/v1/exams?page=1&per_page=20
// Lists the caller's exams, newest first.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	exams, pagination, err := h.examService.ListExams(c.Request.Context(), middleware.GetIdentity(c), page, perPage)
	if err != nil {
		failExam(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	view, err := h.examService.GetExamByID(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": view})
}

// DeleteExam godoc
// DELETE /api/v1/exams/:exam_id
// Removes the exam with its answers, whatever its status.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	if err := h.examService.DeleteExam(c.Request.Context(), middleware.GetIdentity(c), examID); err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam deleted successfully"})
}

// StartExam godoc
// POST /api/v1/exams/:exam_id/start
func (h *ExamHandler) StartExam(c *gin.Context) {
	h.transition(c, h.examService.StartExam)
}

// PauseExam godoc
// POST /api/v1/exams/:exam_id/pause
func (h *ExamHandler) PauseExam(c *gin.Context) {
	h.transition(c, h.examService.PauseExam)
}

// ResumeExam godoc
// POST /api/v1/exams/:exam_id/resume
func (h *ExamHandler) ResumeExam(c *gin.Context) {
	h.transition(c, h.examService.ResumeExam)
}

// CancelExam godoc
// POST /api/v1/exams/:exam_id/cancel
func (h *ExamHandler) CancelExam(c *gin.Context) {
	h.transition(c, h.examService.CancelExam)
}

// SubmitAnswer godoc
// PUT /api/v1/exams/:exam_id/answers/:question_id
// Accepts {"answer": 2} or {"answer": [0, 2]} and replaces any earlier answer.
func (h *ExamHandler) SubmitAnswer(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := exam.ParseAnswer(req.Answer)
	if err != nil {
		failExam(c, err)
		return
	}

	result, err := h.examService.SubmitAnswer(c.Request.Context(), middleware.GetIdentity(c), examID, questionID, answer)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CompleteExam godoc
// POST /api/v1/exams/:exam_id/complete
// Scores the exam and returns the full results.
func (h *ExamHandler) CompleteExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	results, err := h.examService.CompleteExam(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetExamResults godoc
// GET /api/v1/exams/:exam_id/results
func (h *ExamHandler) GetExamResults(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	results, err := h.examService.GetExamResults(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetExamAnalysis godoc
// GET /api/v1/exams/:exam_id/analysis
// Returns weak areas, pacing notes and study recommendations.
func (h *ExamHandler) GetExamAnalysis(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	analysis, err := h.examService.GetExamAnalysis(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"analysis": analysis})
}

// CreateRemediationExam godoc
// POST /api/v1/exams/:exam_id/remediation
// Builds a practice exam from the questions missed in a completed exam.
func (h *ExamHandler) CreateRemediationExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	view, err := h.examService.CreateRemediationExam(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": view})
}

type transitionFunc func(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error)

func (h *ExamHandler) transition(c *gin.Context, fn transitionFunc) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	view, err := fn(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": view})
}

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}
