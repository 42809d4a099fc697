package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrForbidden     ErrorCode = "FORBIDDEN"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrBadRequest    ErrorCode = "BAD_REQUEST"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrStorage       ErrorCode = "STORAGE_ERROR"
	ErrTransport     ErrorCode = "TRANSPORT_ERROR"

	// Credential verification failures. Expired is the only recoverable
	// one: a connection may exchange its refresh token exactly once per
	// message cycle before it is rejected.
	ErrTokenMissing    ErrorCode = "UNAUTHENTICATED_MISSING"
	ErrTokenExpired    ErrorCode = "UNAUTHENTICATED_EXPIRED"
	ErrTokenInvalid    ErrorCode = "UNAUTHENTICATED_INVALID"
	ErrRefreshRejected ErrorCode = "REFRESH_REJECTED"
)

// StatusCodeMap maps ErrorCode to HTTP status code
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:        http.StatusNotFound,
	ErrUnauthorized:    http.StatusUnauthorized,
	ErrForbidden:       http.StatusForbidden,
	ErrConflict:        http.StatusConflict,
	ErrValidation:      http.StatusUnprocessableEntity,
	ErrBadRequest:      http.StatusBadRequest,
	ErrInternalError:   http.StatusInternalServerError,
	ErrAlreadyExists:   http.StatusConflict,
	ErrStorage:         http.StatusInternalServerError,
	ErrTransport:       http.StatusBadGateway,
	ErrTokenMissing:    http.StatusUnauthorized,
	ErrTokenExpired:    http.StatusUnauthorized,
	ErrTokenInvalid:    http.StatusUnauthorized,
	ErrRefreshRejected: http.StatusUnauthorized,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Fatal reports whether an authentication error code must terminate the
// owning connection. Expired bearers are recoverable via refresh.
func (e ErrorCode) Fatal() bool {
	switch e {
	case ErrTokenMissing, ErrTokenInvalid, ErrRefreshRejected:
		return true
	}
	return false
}
