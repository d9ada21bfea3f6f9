package utils

import "errors"

// Common application errors used across services.
var (
	ErrLogNotFound        = errors.New("reference number not found")
	ErrTenantNotFound     = errors.New("TENANT_NOT_FOUND")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrVANotPayable       = errors.New("virtual account is not payable")
	ErrDuplicateVA        = errors.New("virtual account already registered")
)

// ValidationError reports a request field that failed validation before
// any remote call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}
