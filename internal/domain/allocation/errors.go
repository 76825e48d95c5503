package allocation

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing manager, hospital or allocation.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ValidationError reports malformed caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	ResourceManager    = "HealthcareManager"
	ResourceHospital   = "Hospital"
	ResourceAllocation = "ResourceAllocation"
)

func notFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
