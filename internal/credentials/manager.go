package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	memoSize = 16
	memoTTL  = time.Minute
)

// Manager owns the silent-versus-interactive acquisition policy.
type Manager struct {
	provider     Provider
	introspector Introspector
	flags        kvstore.Store
	log          logging.Logger
	now          func() time.Time

	group singleflight.Group
	memo  *expirable.LRU[string, time.Time]
}

// NewManager builds a Manager. flags is the store holding the logged-out flag.
func NewManager(provider Provider, introspector Introspector, flags kvstore.Store, log logging.Logger) *Manager {
	return &Manager{
		provider:     provider,
		introspector: introspector,
		flags:        flags,
		log:          log.With("component", "credentials"),
		now:          time.Now,
		memo:         expirable.NewLRU[string, time.Time](memoSize, nil, memoTTL),
	}
}

// Acquire returns a usable credential. Concurrent callers share one attempt.
func (m *Manager) Acquire(ctx context.Context) (*Credential, error) {
	v, err, _ := m.group.Do("acquire", func() (any, error) {
		return m.acquire(ctx)
	})
	if err != nil {
		return nil, err
	}
	c := *v.(*Credential)
	return &c, nil
}

// Refresh discards stale and acquires a new credential.
func (m *Manager) Refresh(ctx context.Context, stale *Credential) (*Credential, error) {
	if stale != nil && stale.Token != "" {
		m.memo.Remove(stale.Token)
		if err := m.provider.Revoke(ctx, stale.Token); err != nil {
			m.log.Warn(ctx, "revoke stale token failed", "error", err)
		}
	}
	return m.Acquire(ctx)
}

func (m *Manager) acquire(ctx context.Context) (*Credential, error) {
	loggedOut, err := kvstore.GetBool(ctx, m.flags, kvstore.KeyManuallyLoggedOut)
	if err != nil {
		m.log.Warn(ctx, "read logged-out flag failed", "error", err)
	}

	if !loggedOut {
		if cred, ok := m.silent(ctx); ok {
			return cred, nil
		}
	}

	cred, err := m.provider.Interactive(ctx)
	if err == nil && (cred == nil || cred.Token == "") {
		err = fmt.Errorf("interactive sign-in returned no token")
	}
	if err != nil {
		return nil, common.NewError(common.KindPermissionDenied, common.MessageNotSignedIn, fmt.Errorf("%w: %v", common.ErrNotSignedIn, err))
	}

	if err := m.flags.Delete(ctx, kvstore.KeyManuallyLoggedOut); err != nil {
		m.log.Warn(ctx, "clear logged-out flag failed", "error", err)
	}
	m.log.Info(ctx, "signed in interactively")
	return cred, nil
}

// silent returns the provider's cached credential if introspection accepts
// it, revoking it otherwise.
func (m *Manager) silent(ctx context.Context) (*Credential, bool) {
	cred, err := m.provider.Silent(ctx)
	if err != nil || cred == nil || cred.Token == "" {
		if err != nil {
			m.log.Debug(ctx, "silent credential unavailable", "error", err)
		}
		return nil, false
	}

	until, ok := m.validate(ctx, cred.Token)
	if ok {
		return &Credential{Token: cred.Token, ValidUntil: until}, true
	}

	m.memo.Remove(cred.Token)
	if err := m.provider.Revoke(ctx, cred.Token); err != nil {
		m.log.Warn(ctx, "revoke invalid token failed", "error", err)
	}
	return nil, false
}

func (m *Manager) validate(ctx context.Context, token string) (time.Time, bool) {
	now := m.now()
	if until, ok := m.memo.Get(token); ok && until.Sub(now) >= MinRemaining {
		return until, true
	}

	remaining, err := m.introspector.Introspect(ctx, token)
	if err != nil {
		m.log.Debug(ctx, "token introspection rejected token", "error", err)
		return time.Time{}, false
	}
	if remaining < MinRemaining {
		return time.Time{}, false
	}

	until := now.Add(remaining)
	m.memo.Add(token, until)
	return until, true
}
