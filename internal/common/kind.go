package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and user-facing reporting.
type Kind int

const (
	KindInternal Kind = iota
	KindTransientCredential
	KindPermissionDenied
	KindQuotaExceeded
	KindValidation
	KindNetwork
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindTransientCredential:
		return "transient_credential"
	case KindPermissionDenied:
		return "permission_denied"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindFormat:
		return "format"
	default:
		return "internal"
	}
}

// User-facing messages. None of them carries an underlying error string.
const (
	MessageQuotaExceeded    = "You have reached the Google Photos daily limit of 10,000 API requests. Please wait and try again tomorrow."
	MessageNetwork          = "Could not reach Google Photos. Check your internet connection and try again."
	MessageNotSignedIn      = "Could not sign in to Google Photos. Please log in and try again."
	MessagePermission       = "Google Photos refused access. Please log out, log in again and grant the requested permissions."
	MessageCredentialExpiry = "Your Google session expired during the upload. Please try again."
	MessageInternal         = "Upload failed due to an unexpected error."
)

// Error is a classified failure. Message is safe to show to a user, Err is
// the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation wraps err as a validation failure with the given message.
func Validation(message string, err error) *Error {
	return NewError(KindValidation, message, err)
}

// KindOf returns the classification of err. Unclassified errors are
// KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrCredentialExpired):
		return KindTransientCredential
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotSignedIn):
		return KindPermissionDenied
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	}
	return KindInternal
}

// UserMessage returns a human-readable description of err that never
// includes raw error text from lower layers.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case KindTransientCredential:
		return MessageCredentialExpiry
	case KindPermissionDenied:
		if errors.Is(err, ErrNotSignedIn) {
			return MessageNotSignedIn
		}
		return MessagePermission
	case KindQuotaExceeded:
		return MessageQuotaExceeded
	case KindNetwork:
		return MessageNetwork
	}
	return MessageInternal
}
