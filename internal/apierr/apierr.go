// Package apierr defines the error taxonomy shared by the upstream API
// clients. Callers use errors.As to distinguish authentication failures,
// transient failures worth retrying, and permanent rejections, and decide
// retry or abort policy per account.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an upstream API failure.
type Kind int

const (
	// KindAuth means the credentials were rejected; retrying without
	// re-authenticating will not help.
	KindAuth Kind = iota + 1
	// KindTransient covers rate limits, server errors and network failures.
	KindTransient
	// KindPermanent covers validation errors and other rejections that will
	// fail the same way on every retry.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	}
	return "unknown"
}

// Error is a classified upstream API failure.
type Error struct {
	Service string // "monzo" or "lunchmoney"
	Kind    Kind
	Status  int // HTTP status, 0 for network-level failures
	Message string
	// VerificationRequired is set when Monzo gates the request behind
	// in-app approval (SCA). Retryable once the user approves.
	VerificationRequired bool
	Err                  error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Service, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Service, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a later retry could succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// FromStatus classifies an HTTP status code.
func FromStatus(service string, status int, message string) *Error {
	kind := KindPermanent
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuth
	case status == http.StatusTooManyRequests || status >= 500:
		kind = KindTransient
	}
	return &Error{Service: service, Kind: kind, Status: status, Message: message}
}

// Transient wraps a network-level failure.
func Transient(service string, err error) *Error {
	return &Error{Service: service, Kind: KindTransient, Message: err.Error(), Err: err}
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == KindAuth
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Retryable()
}
