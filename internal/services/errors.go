// Package services defines the business logic for documents and the study
// artifacts generated from them. This file centralizes the service-level
// error values so they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Lower-level causes stay wrapped, so both the sentinel
// below and the original error match under errors.Is.
package services

import (
	"errors"
	"fmt"

	"github.com/frandy73/Lumina/internal/objectstore"
	"github.com/frandy73/Lumina/internal/repo"
)

// Persistence errors.
var (
	// ErrAuth indicates the caller is not signed in or does not own the row.
	ErrAuth = errors.New("not signed in or not the owner")

	// ErrNotFound indicates a missing row or a missing object. It is
	// recoverable: the caller may retry.
	ErrNotFound = errors.New("document not found")

	// ErrStore wraps network or service faults of the row or object store.
	ErrStore = errors.New("storage failure")

	// ErrDecode indicates a malformed binary payload. Nothing was written.
	ErrDecode = errors.New("malformed document payload")

	// ErrInvalidDocument is returned when document fields fail validation.
	ErrInvalidDocument = errors.New("invalid document")
)

// Generation errors.
var (
	// ErrGeneration wraps every generative-AI failure.
	ErrGeneration = errors.New("generation failed")

	// ErrInvalidOptions is returned for out-of-range generation options.
	ErrInvalidOptions = errors.New("invalid generation options")

	// ErrEmptyPrompt is returned when a chat message is empty.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a chat message or notes exceed the limit.
	ErrTooLong = errors.New("input too long")

	// ErrInvalidFeedback is returned when a rating is not -1, 0 or 1.
	ErrInvalidFeedback = errors.New("feedback value must be -1, 0 or 1")

	// ErrMessageNotFound indicates the rated message is not in the transcript.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbiddenFeedback is returned when rating a user-authored message.
	ErrForbiddenFeedback = errors.New("only assistant messages can be rated")

	// ErrInvalidQuizResult is returned for impossible quiz scores.
	ErrInvalidQuizResult = errors.New("invalid quiz result")
)

// rowErr maps a metadata store error onto the taxonomy.
func rowErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repo.ErrNotOwner), errors.Is(err, repo.ErrEmptyOwner):
		return fmt.Errorf("%w: %w", ErrAuth, err)
	default:
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
}

// objectErr maps an object store error onto the taxonomy.
func objectErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, objectstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
}
