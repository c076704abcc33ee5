package domain

import (
	"errors"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

// Dispatch failure kinds. Every failure a dispatch caller can observe wraps
// exactly one of these.
var (
	ErrNotConfigured   = errors.New("sms provider is not configured")
	ErrSendingDisabled = errors.New("sms sending is disabled")
	ErrProviderFailure = errors.New("sms provider failure")
	ErrTimeout         = errors.New("sms dispatch timed out")
	ErrCanceled        = errors.New("sms dispatch canceled")
	ErrUnavailable     = errors.New("sms dispatcher unavailable")
)

// ErrorKind names a dispatch failure category.
type ErrorKind string

const (
	KindNotConfigured   ErrorKind = "NOT_CONFIGURED"
	KindSendingDisabled ErrorKind = "SENDING_DISABLED"
	KindProviderFailure ErrorKind = "PROVIDER_FAILURE"
	KindTimeout         ErrorKind = "TIMEOUT"
	KindCanceled        ErrorKind = "CANCELED"
	KindUnavailable     ErrorKind = "UNAVAILABLE"
)

func (k ErrorKind) String() string { return string(k) }

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotConfigured:
		return ErrNotConfigured
	case KindSendingDisabled:
		return ErrSendingDisabled
	case KindProviderFailure:
		return ErrProviderFailure
	case KindTimeout:
		return ErrTimeout
	case KindCanceled:
		return ErrCanceled
	case KindUnavailable:
		return ErrUnavailable
	}
	return nil
}

// DispatchError is the only error type returned by dispatch operations.
// It carries a human-readable message and unwraps to its kind sentinel,
// never to the underlying provider or transport error.
type DispatchError struct {
	Kind    ErrorKind
	Message string
}

func NewDispatchError(kind ErrorKind, message string) *DispatchError {
	return &DispatchError{Kind: kind, Message: strings.TrimSpace(message)}
}

func (e *DispatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	if sentinel := e.Kind.sentinel(); sentinel != nil {
		return sentinel.Error()
	}
	return "sms dispatch failed"
}

func (e *DispatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind.sentinel()
}

// KindOf returns the dispatch kind carried by err, or "" when err is not a DispatchError.
func KindOf(err error) ErrorKind {
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Kind
	}
	return ""
}

func NotConfigured() *DispatchError {
	return NewDispatchError(KindNotConfigured, "Unable to send SMS: no SMS provider configured!")
}

func SendingDisabled() *DispatchError {
	return NewDispatchError(KindSendingDisabled, "SMS sending is disabled due to API limits!")
}

func ProviderFailure(detail string) *DispatchError {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "unknown error"
	}
	return NewDispatchError(KindProviderFailure, "Unable to send SMS: "+detail)
}
