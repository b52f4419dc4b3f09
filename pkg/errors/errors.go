// Package errors defines the sentinel errors shared across the indexer and
// an AppError wrapper that carries an HTTP status code for the search
// service. Fatal run-aborting conditions (store unreachable, schema failure)
// and per-document recoverable conditions (unreadable token file, empty
// vector) are distinct sentinels so batch code can tell them apart with
// errors.Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Fatal for the whole run.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrSchemaFailure    = errors.New("schema setup failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrInternal         = errors.New("internal error")

	// Recoverable per document (fail the run only under the abort policy).
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrEmptyVector        = errors.New("token vector is empty")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
)

// DocumentError records a per-document ingestion failure: which document and
// why. Under the continue policy these are collected into a run summary
// instead of aborting the batch.
type DocumentError struct {
	Document string
	Err      error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %s", e.Document, e.Err.Error())
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// ForDocument wraps err with the document it belongs to.
func ForDocument(document string, err error) *DocumentError {
	return &DocumentError{Document: document, Err: err}
}

// AppError pairs a sentinel with a human-readable message and the HTTP
// status the search service should answer with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status code the search API returns.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrEmptyVector):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
