package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-casebook/internal/content"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/service"
	"github.com/stemsi/exstem-casebook/internal/session"
	"github.com/stemsi/exstem-casebook/internal/submission"
)

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, session.ErrEmptyName):
		return http.StatusBadRequest, response.ErrEmptyName
	case errors.Is(err, session.ErrWrongPassword):
		return http.StatusUnauthorized, response.ErrWrongPassword
	case errors.Is(err, session.ErrUnknownField):
		return http.StatusBadRequest, response.ErrUnknownField
	case errors.Is(err, content.ErrValueMismatch), errors.Is(err, model.ErrInvalidValue):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, session.ErrWrongPhase):
		return http.StatusConflict, response.ErrWrongPhase
	case errors.Is(err, session.ErrPairLocked):
		return http.StatusConflict, response.ErrPairLocked
	case errors.Is(err, session.ErrNotCurrentPair):
		return http.StatusConflict, response.ErrNotCurrentPair
	case errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, session.ErrSubmitInFlight):
		return http.StatusConflict, response.ErrSubmitInFlight
	case errors.Is(err, submission.ErrNoDestination):
		return http.StatusServiceUnavailable, response.ErrSubmissionNotConfigured
	case errors.Is(err, service.ErrSubmissionFailed):
		return http.StatusBadGateway, response.ErrSubmissionFailed
	case errors.Is(err, content.ErrAssetNotFound), errors.Is(err, content.ErrPhaseNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrAssetMissing):
		return http.StatusNotFound, response.ErrAssetMissing
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failFromError writes the error envelope for err.
func failFromError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
