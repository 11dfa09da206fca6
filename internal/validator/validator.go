package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
)

var (
	instance *validator.Validate
	once     sync.Once
)

// NewValidator returns the shared validator instance
func NewValidator() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
	})
	return instance
}

// ValidateRequest validates a request struct against its validate tags
func ValidateRequest(req interface{}) error {
	if err := NewValidator().Struct(req); err != nil {
		return ierr.WithError(err).
			WithHint("Request validation failed").
			Mark(ierr.ErrValidation)
	}
	return nil
}
