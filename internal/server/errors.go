package server

import (
	"errors"
	"net/http"

	"github.com/daikw/improv/internal/game"
	"github.com/daikw/improv/internal/persona"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeBadRequest    = "bad_request"
	CodeNotFound      = "not_found"
	CodeValidation    = "validation_failed"
	CodeEmptyInput    = "empty_input"
	CodeInvalidState  = "invalid_state"
	CodeBusy          = "busy"
	CodeGeneration    = "generation_failed"
	CodeSummarization = "summarization_failed"
	CodeInternal      = "internal_error"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	State   *game.State `json:"state,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Message: err.Error()})
}

// handleGameError maps orchestrator errors to statuses. state, when
// non-nil, is the unchanged game state after the failure.
func handleGameError(c *gin.Context, err error, state *game.State) {
	var (
		status int
		code   string

		validation    *persona.ValidationError
		emptyInput    *game.EmptyInputError
		stateErr      *game.StateError
		generation    *game.GenerationError
		summarization *game.SummarizationError
	)

	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.As(err, &validation):
		status, code = http.StatusUnprocessableEntity, CodeValidation
	case errors.As(err, &emptyInput):
		status, code = http.StatusUnprocessableEntity, CodeEmptyInput
	case errors.Is(err, game.ErrBusy):
		status, code = http.StatusConflict, CodeBusy
	case errors.As(err, &stateErr):
		status, code = http.StatusConflict, CodeInvalidState
	case errors.As(err, &generation):
		status, code = http.StatusBadGateway, CodeGeneration
	case errors.As(err, &summarization):
		status, code = http.StatusBadGateway, CodeSummarization
	default:
		log.Error().Err(err).Msg("Unhandled error")
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: "An unexpected internal error occurred"})
		return
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: err.Error(), State: state})
}
