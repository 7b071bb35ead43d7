// Package account implements explicit sign-in and sign-out.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/dmitrijs2005/photodrop/internal/logging"
)

type Acquirer interface {
	Acquire(ctx context.Context) (*credentials.Credential, error)
}

type Forgetter interface {
	Forget(ctx context.Context) error
}

type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

type Clearer interface {
	Clear(ctx context.Context) error
}

type Selector interface {
	Select(ctx context.Context, id string) error
}

type Service struct {
	creds   Acquirer
	token   Forgetter
	history Clearer
	albums  Selector
	caches  []Invalidator
	flags   kvstore.Store
	log     logging.Logger
}

func NewService(creds Acquirer, token Forgetter, history Clearer, albums Selector, flags kvstore.Store, log logging.Logger, caches ...Invalidator) *Service {
	return &Service{
		creds:   creds,
		token:   token,
		history: history,
		albums:  albums,
		caches:  caches,
		flags:   flags,
		log:     log.With("component", "account"),
	}
}

// Login re-enables silent sign-in and acquires a credential.
func (s *Service) Login(ctx context.Context) (*credentials.Credential, error) {
	if err := s.flags.Delete(ctx, kvstore.KeyManuallyLoggedOut); err != nil {
		return nil, fmt.Errorf("clear logged-out flag: %w", err)
	}
	return s.creds.Acquire(ctx)
}

// Logout forgets the token and wipes every piece of per-user state. All
// steps run even if an earlier one fails.
func (s *Service) Logout(ctx context.Context) error {
	var errs []error

	if err := s.token.Forget(ctx); err != nil {
		errs = append(errs, fmt.Errorf("forget token: %w", err))
	}
	if err := s.history.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, c := range s.caches {
		if err := c.InvalidateAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.albums.Select(ctx, ""); err != nil {
		errs = append(errs, fmt.Errorf("clear album selection: %w", err))
	}
	if err := kvstore.SetJSON(ctx, s.flags, kvstore.KeyManuallyLoggedOut, true); err != nil {
		errs = append(errs, fmt.Errorf("set logged-out flag: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		s.log.Error(ctx, "logout incomplete", "error", err)
		return err
	}
	s.log.Info(ctx, "logged out")
	return nil
}
