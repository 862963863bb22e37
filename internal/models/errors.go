package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving a store or a pipeline wraps exactly one
// of these so the transport can map it to a status code.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrSignatureInvalid = errors.New("invalid signature")
	ErrConflict         = errors.New("conflict")
	ErrGateway          = errors.New("payment gateway error")
	ErrStore            = errors.New("store error")
)

// Error carries a kind, a message that is safe to show to clients and an
// optional internal cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewError builds an *Error of the given kind
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validationf reports malformed or missing input
func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf reports an absent referenced entity
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// StoreError wraps a persistence failure
func StoreError(op string, err error) error {
	return &Error{Kind: ErrStore, Message: op, Err: err}
}

// PublicMessage returns the stable client-facing message for err
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		switch {
		case errors.Is(e.Kind, ErrStore):
			return "Internal server error"
		case errors.Is(e.Kind, ErrGateway):
			return "Payment gateway unavailable"
		}
		return e.Message
	}
	switch {
	case errors.Is(err, ErrSignatureInvalid):
		return "Invalid signature"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrValidation):
		return "Invalid request"
	case errors.Is(err, ErrGateway):
		return "Payment gateway unavailable"
	}
	return "Internal server error"
}
