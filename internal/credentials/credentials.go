// Package credentials acquires and validates the bearer token used for
// Google Photos calls. Silent acquisition is tried first unless the user
// logged out explicitly; a token that is missing, rejected by introspection
// or close to expiry is revoked and replaced through the interactive path.
package credentials

import (
	"context"
	"errors"
	"time"
)

// MinRemaining is the shortest remaining lifetime a token may have to be
// used for a job.
const MinRemaining = 5 * time.Minute

// ErrTokenInvalid is returned by an Introspector for a token that must not
// be used.
var ErrTokenInvalid = errors.New("token invalid")

// Credential is an opaque bearer token and an estimate of its expiry.
type Credential struct {
	Token      string
	ValidUntil time.Time
}

// Provider is the platform identity layer.
type Provider interface {
	// Silent returns a cached or refreshable credential without user
	// interaction.
	Silent(ctx context.Context) (*Credential, error)
	// Interactive signs the user in.
	Interactive(ctx context.Context) (*Credential, error)
	// Revoke drops token from the provider's cache.
	Revoke(ctx context.Context, token string) error
}

// Introspector reports how long token remains valid.
type Introspector interface {
	Introspect(ctx context.Context, token string) (time.Duration, error)
}
