package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AssessmentHandler serves the candidate-facing assessment endpoints. Every
// route runs behind middleware.ResolveInvitation.
type AssessmentHandler struct {
	svc *service.AssessmentService
	log zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(svc *service.AssessmentService, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		svc: svc,
		log: log.With().Str("component", "assessment_handler").Logger(),
	}
}

// Bootstrap godoc
// GET /api/v1/assessments/:token
// Returns the session, its raw questions and the responses saved so far.
func (h *AssessmentHandler) Bootstrap(c *gin.Context) {
	rec := middleware.GetSession(c)
	if rec == nil {
		response.Fail(c, http.StatusNotFound, response.ErrInvitationNotFound)
		return
	}

	payload, err := h.svc.Bootstrap(c.Request.Context(), rec)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// Start godoc
// POST /api/v1/assessments/:token/start
// Records the start time. Repeated calls return the first recorded time.
func (h *AssessmentHandler) Start(c *gin.Context) {
	rec := middleware.GetSession(c)
	if rec == nil {
		response.Fail(c, http.StatusNotFound, response.ErrInvitationNotFound)
		return
	}

	res, err := h.svc.Start(c.Request.Context(), rec)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// SaveAnswer godoc
// POST /api/v1/assessments/:token/save
func (h *AssessmentHandler) SaveAnswer(c *gin.Context) {
	rec := middleware.GetSession(c)
	if rec == nil {
		response.Fail(c, http.StatusNotFound, response.ErrInvitationNotFound)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.svc.SaveAnswer(c.Request.Context(), rec, &req); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questionId": req.QuestionID, "saved": true})
}

// Submit godoc
// POST /api/v1/assessments/:token/submit
// Completes the session. A duplicate submission answers 200 with
// alreadyCompleted set.
func (h *AssessmentHandler) Submit(c *gin.Context) {
	rec := middleware.GetSession(c)
	if rec == nil {
		response.Fail(c, http.StatusNotFound, response.ErrInvitationNotFound)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), rec, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// fail maps service errors onto the response envelope.
func (h *AssessmentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvitationNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrInvitationNotFound)
	case errors.Is(err, service.ErrInvitationExpired):
		response.Fail(c, http.StatusGone, response.ErrInvitationExpired)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrUnknownQuestion)
	case errors.Is(err, service.ErrInvalidResponse):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Assessment request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
