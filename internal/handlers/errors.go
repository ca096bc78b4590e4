package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"commitfi/internal/services"
)

// statusForError maps service errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAlreadyRequested),
		errors.Is(err, services.ErrAlreadyJoined),
		errors.Is(err, services.ErrAlreadySubmitted),
		errors.Is(err, services.ErrAlreadyFinalized),
		errors.Is(err, services.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotApproved),
		errors.Is(err, services.ErrNoStake),
		errors.Is(err, services.ErrNotVerified),
		errors.Is(err, services.ErrNotExpired),
		errors.Is(err, services.ErrDeadlinePassed),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrChallengeFull),
		errors.Is(err, services.ErrSelfJoin),
		errors.Is(err, services.ErrSelfVote),
		errors.Is(err, services.ErrNoConsensus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrPaymentFailed):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}
