package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/onboardhub-backend/internal/assessment"
	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/services"
)

type QuizHandler struct {
	log           *logger.Logger
	assessmentSvc services.AssessmentService
}

func NewQuizHandler(log *logger.Logger, assessmentSvc services.AssessmentService) *QuizHandler {
	return &QuizHandler{
		log:           log.With("handler", "QuizHandler"),
		assessmentSvc: assessmentSvc,
	}
}

type generateQuizRequest struct {
	CompanyID   uuid.UUID `json:"companyId" binding:"required"`
	DeptID      uuid.UUID `json:"deptId" binding:"required"`
	UserID      uuid.UUID `json:"userId" binding:"required"`
	ModuleID    uuid.UUID `json:"moduleId" binding:"required"`
	ModuleTitle string    `json:"moduleTitle"`
}

// POST /api/quiz/generate
// Generate a quiz for a training module. The response never contains the
// answer key.
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.assessmentSvc.GenerateQuiz(c.Request.Context(), services.GenerateQuizInput{
		CompanyID:    req.CompanyID,
		DepartmentID: req.DeptID,
		UserID:       req.UserID,
		ModuleID:     req.ModuleID,
		ModuleTitle:  req.ModuleTitle,
	})
	if err != nil {
		h.log.Error("quiz generation failed", "module_id", req.ModuleID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

type submitQuizRequest struct {
	CompanyID uuid.UUID            `json:"companyId" binding:"required"`
	DeptID    uuid.UUID            `json:"deptId" binding:"required"`
	UserID    uuid.UUID            `json:"userId" binding:"required"`
	ModuleID  uuid.UUID            `json:"moduleId" binding:"required"`
	QuizID    uuid.UUID            `json:"quizId" binding:"required"`
	Answers   assessment.AnswerSet `json:"answers"`
}

// POST /api/quiz/submit
// Grade a submission, record the attempt, and return the policy decision.
func (h *QuizHandler) SubmitQuiz(c *gin.Context) {
	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.assessmentSvc.SubmitQuiz(c.Request.Context(), services.SubmitQuizInput{
		CompanyID:    req.CompanyID,
		DepartmentID: req.DeptID,
		UserID:       req.UserID,
		ModuleID:     req.ModuleID,
		QuizID:       req.QuizID,
		Answers:      req.Answers,
	})
	if err != nil {
		h.log.Error("quiz submission failed", "quiz_id", req.QuizID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/quiz/:id
// Re-fetch a previously generated quiz. Never regenerates.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	result, err := h.assessmentSvc.GetQuiz(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/quiz/:id/attempts
// Attempt history for the quiz's (user, module).
func (h *QuizHandler) GetQuizAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	attempts, err := h.assessmentSvc.ListAttempts(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"attempts": attempts})
}
