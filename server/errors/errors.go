// Package errors defines the application error type carried between
// service code and HTTP handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an application error with an HTTP status and an internal
// cause. The cause is logged, never serialized to the client.
type AppError struct {
	Code    int    `json:"status_code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status for the error.
func (e *AppError) StatusCode() int {
	return e.Code
}

// UserMessage returns the client-facing message.
func (e *AppError) UserMessage() string {
	return e.Message
}

// NewNotFoundError creates a 404 Not Found error.
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, Err: err}
}

// NewValidationError creates a 400 Bad Request error.
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: err}
}

// NewGoneError creates a 410 Gone error.
func NewGoneError(message string, err error) *AppError {
	return &AppError{Code: http.StatusGone, Message: message, Err: err}
}

// NewPayloadTooLargeError creates a 413 Request Entity Too Large error.
func NewPayloadTooLargeError(message string, err error) *AppError {
	return &AppError{Code: http.StatusRequestEntityTooLarge, Message: message, Err: err}
}

// NewInternalError creates a 500 Internal Server Error. The client sees a
// generic message, the cause stays in the logs.
func NewInternalError(message string, err error) *AppError {
	cause := errors.New(message)
	if err != nil {
		cause = fmt.Errorf("%s: %w", message, err)
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
		Err:     cause,
	}
}
