package common

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError by where the failure originated.
type Kind string

const (
	// KindValidation marks local business-rule failures (forbidden items, bad input).
	KindValidation Kind = "validation"
	// KindConfiguration marks missing or inconsistent local state or settings.
	KindConfiguration Kind = "configuration"
	// KindDeclined marks a payment the buyer canceled or has not finished.
	KindDeclined Kind = "declined"
	// KindProtocol marks malformed or empty provider responses.
	KindProtocol Kind = "protocol"
	// KindProvider marks business errors reported by the provider.
	KindProvider Kind = "provider"
	// KindTransport marks network failures talking to the provider.
	KindTransport Kind = "transport"
	// KindInternal is used for anything else.
	KindInternal Kind = "internal"
)

// AppError represents an error with an attached kind, code and HTTP status.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface. The message is preferred because it
// is what ends up in front of the buyer.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation builds a KindValidation error.
func Validation(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// Configuration builds a KindConfiguration error.
func Configuration(code, message string) *AppError {
	return &AppError{Kind: KindConfiguration, Code: code, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// Declined builds a KindDeclined error. The provider answered correctly, so
// it maps to 422 rather than a gateway failure.
func Declined(code, message string) *AppError {
	return &AppError{Kind: KindDeclined, Code: code, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// Protocol builds a KindProtocol error.
func Protocol(message string, err error) *AppError {
	return &AppError{Kind: KindProtocol, Code: "PROVIDER_PROTOCOL", Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// Provider builds a KindProvider error carrying the provider's message.
func Provider(code, message string) *AppError {
	if code == "" {
		code = "PROVIDER_ERROR"
	}
	return &AppError{Kind: KindProvider, Code: code, Message: message, HTTPStatus: http.StatusBadGateway}
}

// Transport wraps a network failure.
func Transport(err error) *AppError {
	msg := "payment provider unreachable"
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &AppError{Kind: KindTransport, Code: "PROVIDER_UNREACHABLE", Message: msg, HTTPStatus: http.StatusBadGateway, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// KindOf returns the kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var target *AppError
	if errors.As(err, &target) && target.Kind != "" {
		return target.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status to use for err.
func StatusOf(err error) int {
	var target *AppError
	if errors.As(err, &target) && target.HTTPStatus != 0 {
		return target.HTTPStatus
	}
	return http.StatusInternalServerError
}

// StatusForKind maps a Kind to the HTTP status used when only the kind is known.
func StatusForKind(k Kind) int {
	switch k {
	case KindValidation, KindConfiguration, KindDeclined:
		return http.StatusUnprocessableEntity
	case KindProtocol, KindProvider, KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
