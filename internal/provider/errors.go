package provider

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSenderClosed = errors.New("sms sender is closed")

// ProviderError describes a failed provider call.
type ProviderError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// MostSpecificCause returns the message of the innermost error in err's wrap
// chain. Errors without a chain yield their own message.
func MostSpecificCause(err error) string {
	if err == nil {
		return ""
	}

	innermost := err
	for {
		next := unwrapOnce(innermost)
		if next == nil {
			break
		}
		innermost = next
	}

	if msg := strings.TrimSpace(innermost.Error()); msg != "" {
		return msg
	}
	return strings.TrimSpace(err.Error())
}

func unwrapOnce(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if inner != nil {
				return inner
			}
		}
	}
	return nil
}
