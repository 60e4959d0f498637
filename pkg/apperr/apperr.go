// Package apperr defines the application error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition"
	default:
		return "internal"
	}
}

// Machine-readable error codes returned next to the message.
const (
	CodeInvalidCredentials   = "invalid_credentials"
	CodeInvalidToken         = "invalid_token"
	CodeOTPExpired           = "otp_expired"
	CodeInvalidCode          = "invalid_code"
	CodeOTPNotVerified       = "otp_not_verified"
	CodeWrongPassword        = "wrong_password"
	CodeLastAdmin            = "last_admin"
	CodeDuplicate            = "duplicate"
	CodeAlreadyDecided       = "already_decided"
	CodeChainRejected        = "chain_rejected"
	CodePreviousLevelPending = "previous_level_pending"
	CodeEventNotPending      = "event_not_pending"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and code so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithCode returns a copy of e carrying code.
func (e *Error) WithCode(code string) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports bad input (400).
func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

// Authentication reports a missing, invalid or expired credential (401).
func Authentication(format string, args ...any) *Error {
	return newf(KindAuthentication, format, args...)
}

// Authorization reports a role mismatch (403).
func Authorization(format string, args ...any) *Error {
	return newf(KindAuthorization, format, args...)
}

// NotFound reports a missing resource, or one hidden from the caller's tenant (404).
func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// Conflict reports a duplicate or an illegal state transition (409).
func Conflict(format string, args ...any) *Error { return newf(KindConflict, format, args...) }

// Precondition reports an operation attempted before its prerequisite step (400).
func Precondition(format string, args ...any) *Error {
	return newf(KindPrecondition, format, args...)
}

// Wrap marks err as internal. The message never reaches the client.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err or "".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
