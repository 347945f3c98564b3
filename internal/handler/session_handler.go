package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/service"
	"github.com/stemsi/exstem-casebook/internal/submission"
	"github.com/stemsi/exstem-casebook/internal/validator"
)

// SessionHandler handles the student-facing exam flow.
type SessionHandler struct {
	sessionService *service.ExamSessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Login godoc
// POST /api/v1/sessions
// Opens a session for the student and places it in the waiting room.
func (h *SessionHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessionService.Login(c.Request.Context(), req.StudentName)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, st)
}

// GetState godoc
// GET /api/v1/sessions/:id/state
// Render pass: applies a pending timer expiry, then returns the snapshot.
func (h *SessionHandler) GetState(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	st, err := h.sessionService.State(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, st)
}

// Start godoc
// POST /api/v1/sessions/:id/start
// Proctor password check; moves the session from WAIT to RUNNING.
func (h *SessionHandler) Start(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.StartRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessionService.Start(c.Request.Context(), id, req.Password)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, st)
}

// GetContent godoc
// GET /api/v1/sessions/:id/content
// Returns the question sheet of the current pair.
func (h *SessionHandler) GetContent(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sheet, err := h.sessionService.Content(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, sheet)
}

// PutAnswer godoc
// PUT /api/v1/sessions/:id/answers
// Writes one answer belonging to the current pair.
func (h *SessionHandler) PutAnswer(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessionService.SetAnswer(c.Request.Context(), id, req.Key, req.Value)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, st)
}

// Advance godoc
// POST /api/v1/sessions/:id/advance
// Locks the named pair and moves on. Ignored if the pair is already locked.
func (h *SessionHandler) Advance(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.AdvanceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessionService.Advance(c.Request.Context(), id, req.Pair())
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, st)
}

// GetResults godoc
// GET /api/v1/sessions/:id/results
// Grades the essays on first access after FINISH and returns every answer.
func (h *SessionHandler) GetResults(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	st, err := h.sessionService.Results(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, st)
}

// ExportCSV godoc
// GET /api/v1/sessions/:id/export.csv
func (h *SessionHandler) ExportCSV(c *gin.Context) {
	h.export(c, "csv", "text/csv; charset=utf-8", submission.WriteCSV)
}

// ExportJSON godoc
// GET /api/v1/sessions/:id/export.json
func (h *SessionHandler) ExportJSON(c *gin.Context) {
	h.export(c, "json", "application/json; charset=utf-8", submission.WriteJSON)
}

func (h *SessionHandler) export(c *gin.Context, ext, contentType string, write func(io.Writer, map[string]model.Value) error) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	answers, err := h.sessionService.Export(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, answers); err != nil {
		failFromError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", submission.Filename(answers, ext)))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Submit godoc
// POST /api/v1/sessions/:id/submit
// Sends the answer sheet to the remote form. Failures may be retried.
func (h *SessionHandler) Submit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	res, err := h.sessionService.Submit(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// sessionID parses the :id path parameter, writing the error response on
// failure.
func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
