package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"taskboard/api/internal/blob"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	errUnauthorized = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	errForbidden    = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
)

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func notFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		fields := make(map[string]string, len(invalid))
		for _, fe := range invalid {
			fields[fe.Field()] = fe.Tag()
		}
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid input", fields
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, blob.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Already exists", nil
	}
	if errors.Is(err, session.ErrInvalidCookie) ||
		errors.Is(err, session.ErrSessionNotFound) ||
		errors.Is(err, session.ErrNoUser) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
