package handlers

import (
	"errors"
	"net/http"

	"safeher/internal/services"
	"safeher/internal/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto the response envelope.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError

	switch {
	case errors.As(err, &verr):
		utils.ValidationErrorResponse(c, verr.Fields)
	case errors.Is(err, services.ErrSessionNotFound):
		utils.NotFoundResponse(c, "Session")
	case errors.Is(err, services.ErrContactNotFound):
		utils.NotFoundResponse(c, "Contact")
	case errors.Is(err, services.ErrProtectedContact):
		utils.ForbiddenResponse(c, utils.CodeProtectedContact, err.Error())
	case errors.Is(err, services.ErrDispatchInProgress):
		utils.ConflictResponse(c, utils.CodeDispatchInProgress, err.Error())
	case errors.Is(err, services.ErrSpeechUnsupported):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, utils.CodeSpeechUnsupported, err.Error())
	case errors.Is(err, services.ErrAlreadyListening):
		utils.ConflictResponse(c, utils.CodeAlreadyListening, err.Error())
	case errors.Is(err, services.ErrNotListening):
		utils.ConflictResponse(c, utils.CodeNotListening, err.Error())
	case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrMessageTooLong):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeEmptyMessage, err.Error())
	case errors.Is(err, services.ErrInvalidTrigger):
		utils.BadRequestResponse(c, err.Error())
	default:
		utils.InternalServerErrorResponse(c)
	}
}

// loadSession resolves the :id path parameter. It writes the error response itself.
func loadSession(c *gin.Context, sessions services.SessionService) (*services.Session, bool) {
	session, err := sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}
