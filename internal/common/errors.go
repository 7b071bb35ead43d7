// Package common defines sentinel errors and the error classification shared
// by every photodrop component. Callers should use errors.Is to match the
// sentinels and KindOf / UserMessage to decide how a failure is surfaced.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")

	// Credential lifecycle errors.
	ErrCredentialExpired = errors.New("credential expired")
	ErrNotSignedIn       = errors.New("not signed in")
	ErrPermissionDenied  = errors.New("permission denied")

	// Remote quota errors.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// Locator / payload validation errors.
	ErrUnsupportedScheme  = errors.New("unsupported url scheme")
	ErrPrivateNetwork     = errors.New("private network target")
	ErrInvalidURL         = errors.New("invalid url")
	ErrTooLarge           = errors.New("payload too large")
	ErrUnsupportedMIME    = errors.New("unsupported media type")
	ErrUnknownContentType = errors.New("unknown content type")

	// Connectivity errors.
	ErrNetwork = errors.New("network failure")
)
