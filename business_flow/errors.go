// Package businessflow contains the core business logic and use cases for the publishing workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Run-related errors
	ErrRunNotFound = errors.New("publish run not found")

	// Connection errors classify why the driver skips a platform for an ad.
	ErrConnectionNotFound   = errors.New("platform connection not found")
	ErrConnectionIncomplete = errors.New("platform connection is missing required fields")
	ErrFundingIDRequired    = errors.New("funding identifier is required for this platform")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
