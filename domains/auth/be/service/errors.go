package service

import "errors"

// Domain sentinel errors. Credential failures collapse into a single error
// so responses never reveal whether the username, password, or account state
// was at fault.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid or expired")
	ErrTenantMismatch     = errors.New("token does not belong to this tenant")
	ErrForbidden          = errors.New("insufficient role")
	ErrNotFound           = errors.New("user not found")
	ErrConflict           = errors.New("username or email already taken")
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

func newValidationError(fields map[string]string) error {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
