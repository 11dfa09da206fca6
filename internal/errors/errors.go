package errors

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for the invoicing engine. Every error surfaced by the
// domain, repository and service layers is marked with exactly one of these
// so callers can map failures without string matching.
var (
	ErrValidation       = errors.New(ErrCodeValidation)
	ErrNotFound         = errors.New(ErrCodeNotFound)
	ErrInvalidOperation = errors.New(ErrCodeInvalidOperation)
	ErrAlreadyExists    = errors.New(ErrCodeAlreadyExists)
	ErrVersionConflict  = errors.New(ErrCodeVersionConflict)
	ErrDatabase         = errors.New(ErrCodeDatabase)
	ErrSystem           = errors.New(ErrCodeSystemError)

	// maps sentinel errors to http status codes
	statusCodeMap = map[error]int{
		ErrValidation:       http.StatusBadRequest,
		ErrInvalidOperation: http.StatusBadRequest,
		ErrNotFound:         http.StatusNotFound,
		ErrAlreadyExists:    http.StatusConflict,
		ErrVersionConflict:  http.StatusConflict,
		ErrDatabase:         http.StatusInternalServerError,
		ErrSystem:           http.StatusInternalServerError,
	}
)

const (
	ErrCodeValidation       = "validation_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeVersionConflict  = "version_conflict"
	ErrCodeDatabase         = "database_error"
	ErrCodeSystemError      = "system_error"
)

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidOperation checks if an error is an invalid state transition error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsVersionConflict checks if an error is a stale-version conflict
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsConflict reports whether the error is any concurrent-write conflict,
// either a duplicate resource or a stale aggregate version.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrVersionConflict)
}

// IsDatabase checks if an error is a storage collaborator failure
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// HTTPStatusFromErr maps an error to the status code the REST boundary
// should respond with.
func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
