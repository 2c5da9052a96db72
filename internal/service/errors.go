package service

import "errors"

// ValidationError es un error causado por el cliente. Su mensaje se expone tal cual.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Errores de validacion de rangos de fechas. Los mensajes son parte del contrato HTTP.
var (
	ErrInvalidDateFormat = &ValidationError{Message: "Invalid date format. Please use valid dates"}
	ErrFromAfterTo       = &ValidationError{Message: "fromDate must be earlier than toDate"}
	ErrRangeTooLong      = &ValidationError{Message: "Date range is too long"}
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password must have at least 8 characters")
	ErrCodeNotRequested   = errors.New("confirmation code not requested")
	ErrCodeExpired        = errors.New("confirmation code expired")
	ErrCodeInvalid        = errors.New("confirmation code invalid")
	ErrAlreadyConfirmed   = errors.New("account already confirmed")
	ErrNotConfirmed       = errors.New("account not confirmed")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrSelfFollow = errors.New("users cannot follow themselves")

	ErrEventNotFound    = errors.New("event not found")
	ErrInvalidEvent     = errors.New("event name is required")
	ErrForbidden        = errors.New("forbidden")
	ErrOwnerCannotLeave = errors.New("event owner cannot leave the event")
)
