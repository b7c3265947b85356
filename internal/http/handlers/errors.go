// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the symbolic error codes returned in the error
// envelope and the single place where service errors become HTTP statuses.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes mirror HTTP status semantics; domain codes (decode_failed,
//     generation_failed, ...) name failures that status alone cannot convey.
//   - Clients branch on the code, never on the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "document not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frandy73/Lumina/internal/ai"
	"github.com/frandy73/Lumina/internal/repo"
	"github.com/frandy73/Lumina/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeTooLarge     = "payload_too_large"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeDecodeFailed      = "decode_failed"
	ErrCodeStorageFailed     = "storage_failed"
	ErrCodeGenerationFailed  = "generation_failed"
	ErrCodeAIUnavailable     = "ai_unavailable"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
	ErrCodeValidationFailed  = "validation_failed"
	ErrCodeMessageNotFound   = "message_not_found"
	ErrCodeUnsupportedFormat = "unsupported_document"
)

// failFromService maps a service error onto the envelope. The message of
// 5xx responses is generic; the cause goes to the request log instead.
func failFromService(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")

	case errors.Is(err, repo.ErrNotOwner):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "document belongs to another user")
	case errors.Is(err, services.ErrAuth):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "not signed in")

	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeMessageNotFound, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")

	case errors.Is(err, services.ErrDecode):
		fail(c, http.StatusUnprocessableEntity, ErrCodeDecodeFailed, err.Error())
	case errors.Is(err, ai.ErrUnsupportedDocument):
		fail(c, http.StatusUnprocessableEntity, ErrCodeUnsupportedFormat, "document type not supported by the AI provider")

	case errors.Is(err, services.ErrInvalidDocument),
		errors.Is(err, services.ErrInvalidOptions),
		errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidFeedback),
		errors.Is(err, services.ErrInvalidQuizResult):
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, services.ErrForbiddenFeedback):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, ai.ErrDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeAIUnavailable, "AI features are not configured")
	case errors.Is(err, services.ErrGeneration):
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, ErrCodeGenerationFailed, "generation failed, try again")
	case errors.Is(err, services.ErrStore):
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, ErrCodeStorageFailed, "storage unavailable, try again")

	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
