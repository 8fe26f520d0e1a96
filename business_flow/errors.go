// Package businessflow contains the core business logic and use cases for the pledge workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Pledge input errors
	ErrInvalidSeats    = errors.New("seats must be between 1 and 20")
	ErrFullNameEmpty   = errors.New("full name is required")
	ErrEmailInvalid    = errors.New("email is invalid")
	ErrSecretRequired  = errors.New("secret is required")
	ErrPledgeIDInvalid = errors.New("pledge id is invalid")

	// Pledge lifecycle errors
	ErrPledgeNotFound            = errors.New("pledge not found")
	ErrPledgeNotFoundOrProcessed = errors.New("invalid email or secret, or pledge already processed")
	ErrPledgeNotActive           = errors.New("pledge is no longer active")
	ErrVaultIntentMismatch       = errors.New("setup intent does not belong to this pledge")
	ErrVaultIntentNotConfirmed   = errors.New("setup intent has not been confirmed")
	ErrPaymentMethodConflict     = errors.New("pledge already has a different payment method")

	// Downstream failures
	ErrVaultIntentCreationFailed = errors.New("failed to create vault intent")
	ErrVaultLookupFailed         = errors.New("failed to retrieve vault intent")
	ErrPledgeCreationFailed      = errors.New("failed to create pledge")
	ErrVaultStatusUpdateFailed   = errors.New("failed to update vault status")
	ErrPledgeCancellationFailed  = errors.New("failed to cancel pledge")
	ErrVaultStatusUnavailable    = errors.New("vault status unavailable")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
	ErrInvalidState    = errors.New("state must be one of active, cancelled, charged")
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

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// BusinessErrorCode returns the code of the outermost BusinessError in the chain
func BusinessErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsInvalidSeats(err error) bool {
	return errors.Is(err, ErrInvalidSeats)
}

func IsFullNameEmpty(err error) bool {
	return errors.Is(err, ErrFullNameEmpty)
}

func IsEmailInvalid(err error) bool {
	return errors.Is(err, ErrEmailInvalid)
}

func IsSecretRequired(err error) bool {
	return errors.Is(err, ErrSecretRequired)
}

func IsPledgeIDInvalid(err error) bool {
	return errors.Is(err, ErrPledgeIDInvalid)
}

// IsValidationError reports whether err was caused by bad caller input
func IsValidationError(err error) bool {
	return IsInvalidSeats(err) || IsFullNameEmpty(err) || IsEmailInvalid(err) || IsSecretRequired(err) || IsPledgeIDInvalid(err)
}

func IsPledgeNotFound(err error) bool {
	return errors.Is(err, ErrPledgeNotFound)
}

func IsPledgeNotFoundOrProcessed(err error) bool {
	return errors.Is(err, ErrPledgeNotFoundOrProcessed)
}

func IsPledgeNotActive(err error) bool {
	return errors.Is(err, ErrPledgeNotActive)
}

func IsVaultIntentMismatch(err error) bool {
	return errors.Is(err, ErrVaultIntentMismatch)
}

func IsVaultIntentNotConfirmed(err error) bool {
	return errors.Is(err, ErrVaultIntentNotConfirmed)
}

func IsPaymentMethodConflict(err error) bool {
	return errors.Is(err, ErrPaymentMethodConflict)
}

func IsVaultIntentCreationFailed(err error) bool {
	return errors.Is(err, ErrVaultIntentCreationFailed)
}

func IsVaultLookupFailed(err error) bool {
	return errors.Is(err, ErrVaultLookupFailed)
}

func IsPledgeCreationFailed(err error) bool {
	return errors.Is(err, ErrPledgeCreationFailed)
}

func IsVaultStatusUpdateFailed(err error) bool {
	return errors.Is(err, ErrVaultStatusUpdateFailed)
}

func IsPledgeCancellationFailed(err error) bool {
	return errors.Is(err, ErrPledgeCancellationFailed)
}

func IsVaultStatusUnavailable(err error) bool {
	return errors.Is(err, ErrVaultStatusUnavailable)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
