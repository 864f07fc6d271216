package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"election-ledger/ledger"
	"election-ledger/service"
)

// errorStatus maps an operation error to its HTTP status and error kind.
func errorStatus(err error) (int, string) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, string(verr.Kind)
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, ledger.ErrNotRegistered):
		return http.StatusNotFound, "not_registered"
	case errors.Is(err, ledger.ErrElectionNotFound):
		return http.StatusNotFound, "election_not_found"
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		return http.StatusConflict, "already_registered"
	case errors.Is(err, ledger.ErrNotStarted):
		return http.StatusConflict, "not_started"
	case errors.Is(err, ledger.ErrEnded):
		return http.StatusConflict, "ended"
	case errors.Is(err, ledger.ErrAlreadyVoted):
		return http.StatusConflict, "already_voted"
	case errors.Is(err, ledger.ErrInvalidCandidate):
		return http.StatusUnprocessableEntity, "invalid_candidate"
	case errors.Is(err, ledger.ErrInvalidPage):
		return http.StatusBadRequest, "invalid_page"
	case errors.Is(err, service.ErrQueueFull),
		errors.Is(err, service.ErrQueueStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, kind := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"event", "http_internal_error",
			"path", c.FullPath(),
			"error", err.Error(),
		)
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: kind, Message: message})
}

func badRequest(c *gin.Context, kind, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: kind, Message: message})
}
