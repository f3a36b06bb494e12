package errors

import "net/http"

// Stable machine-readable codes returned in error bodies.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeEmailExists           = "EMAIL_EXISTS"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeAccountNotVerified    = "ACCOUNT_NOT_VERIFIED"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeAlreadyVerified       = "ALREADY_VERIFIED"
	CodeEmailSendFailed       = "EMAIL_SEND_FAILED"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeInvalidRefreshToken   = "INVALID_REFRESH_TOKEN"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeRateLimited           = "RATE_LIMITED"
	CodeInternal              = "INTERNAL_ERROR"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
	Code       string
	Details    []string
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

func New(code string, statusCode int, message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Message: message, StatusCode: statusCode, Code: code}
}

func Validation(message string, details ...string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Details:    details,
	}
}

func Unauthorized(message string) *ErrorWithStatusCode {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}
