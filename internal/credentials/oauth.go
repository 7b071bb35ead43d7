package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Scopes requested at sign-in.
var Scopes = []string{
	"https://www.googleapis.com/auth/photoslibrary.appendonly",
	"https://www.googleapis.com/auth/photoslibrary.readonly.appcreateddata",
	"https://www.googleapis.com/auth/photoslibrary.edit.appcreateddata",
	"https://www.googleapis.com/auth/userinfo.profile",
}

const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// OAuthProvider is a Provider backed by golang.org/x/oauth2. The token is
// persisted in the local store; interactive sign-in uses the device flow.
type OAuthProvider struct {
	cfg       *oauth2.Config
	store     kvstore.Store
	http      *http.Client
	out       io.Writer
	revokeURL string
	cipher    TokenCipher
}

// TokenCipher seals the stored token at rest; see cryptox.Cipher.
type TokenCipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type OAuthOption func(*OAuthProvider)

// WithEndpoint overrides the Google endpoints.
func WithEndpoint(e oauth2.Endpoint) OAuthOption {
	return func(p *OAuthProvider) { p.cfg.Endpoint = e }
}

func WithRevokeURL(u string) OAuthOption {
	return func(p *OAuthProvider) { p.revokeURL = u }
}

// WithTokenCipher encrypts the persisted token with c.
func WithTokenCipher(c TokenCipher) OAuthOption {
	return func(p *OAuthProvider) { p.cipher = c }
}

func WithHTTPClient(c *http.Client) OAuthOption {
	return func(p *OAuthProvider) { p.http = c }
}

// NewOAuthProvider builds a provider for the given OAuth client. Device flow
// instructions are written to out.
func NewOAuthProvider(clientID, clientSecret string, store kvstore.Store, out io.Writer, opts ...OAuthOption) *OAuthProvider {
	p := &OAuthProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       Scopes,
		},
		store:     store,
		http:      http.DefaultClient,
		out:       out,
		revokeURL: DefaultRevokeURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OAuthProvider) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http)
}

func (p *OAuthProvider) load(ctx context.Context) (*oauth2.Token, error) {
	raw, err := p.store.Get(ctx, kvstore.KeyOAuthToken)
	if err != nil || raw == nil {
		return nil, err
	}
	return p.decode(raw)
}

func (p *OAuthProvider) save(ctx context.Context, tok *oauth2.Token) error {
	raw, err := p.encode(tok)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, kvstore.KeyOAuthToken, raw)
}

func (p *OAuthProvider) decode(raw []byte) (*oauth2.Token, error) {
	if p.cipher != nil {
		plain, err := p.cipher.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("decrypt token: %w", err)
		}
		raw = plain
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

func (p *OAuthProvider) encode(tok *oauth2.Token) ([]byte, error) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return nil, err
	}
	if p.cipher == nil {
		return raw, nil
	}
	return p.cipher.Seal(raw)
}

// Silent returns the stored access token, refreshing it when expired.
func (p *OAuthProvider) Silent(ctx context.Context) (*Credential, error) {
	stored, err := p.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if stored == nil {
		return nil, common.ErrNotSignedIn
	}

	fresh, err := p.cfg.TokenSource(p.ctx(ctx), stored).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.AccessToken != stored.AccessToken {
		if err := p.save(ctx, fresh); err != nil {
			return nil, fmt.Errorf("save token: %w", err)
		}
	}
	return &Credential{Token: fresh.AccessToken, ValidUntil: fresh.Expiry}, nil
}

// Interactive returns a freshly minted credential. A stored refresh token
// is tried first; the device authorization flow runs only when there is
// none or the refresh is rejected.
func (p *OAuthProvider) Interactive(ctx context.Context) (*Credential, error) {
	if cred, err := p.forceRefresh(ctx); err == nil {
		return cred, nil
	}

	octx := p.ctx(ctx)
	da, err := p.cfg.DeviceAuth(octx)
	if err != nil {
		return nil, fmt.Errorf("device auth: %w", err)
	}
	if p.out != nil {
		_, _ = fmt.Fprintf(p.out, "To sign in, open %s and enter code %s\n", da.VerificationURI, da.UserCode)
	}

	tok, err := p.cfg.DeviceAccessToken(octx, da)
	if err != nil {
		return nil, fmt.Errorf("device token: %w", err)
	}
	if stored, _ := p.load(ctx); stored != nil && tok.RefreshToken == "" {
		tok.RefreshToken = stored.RefreshToken
	}
	if err := p.save(ctx, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return &Credential{Token: tok.AccessToken, ValidUntil: tok.Expiry}, nil
}

var errNoRefreshToken = errors.New("no refresh token")

func (p *OAuthProvider) forceRefresh(ctx context.Context) (*Credential, error) {
	stored, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.RefreshToken == "" {
		return nil, errNoRefreshToken
	}

	expired := &oauth2.Token{RefreshToken: stored.RefreshToken, Expiry: time.Unix(1, 0)}
	fresh, err := p.cfg.TokenSource(p.ctx(ctx), expired).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = stored.RefreshToken
	}
	if err := p.save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return &Credential{Token: fresh.AccessToken, ValidUntil: fresh.Expiry}, nil
}

// Revoke drops the cached access token so the next Silent call refreshes.
// The refresh token is kept.
func (p *OAuthProvider) Revoke(ctx context.Context, token string) error {
	return p.store.Update(ctx, kvstore.KeyOAuthToken, func(raw []byte) ([]byte, error) {
		if raw == nil {
			return nil, kvstore.ErrSkip
		}
		tok, err := p.decode(raw)
		if err != nil {
			return nil, err
		}
		if tok.AccessToken != token {
			return nil, kvstore.ErrSkip
		}
		tok.AccessToken = ""
		tok.Expiry = time.Unix(1, 0)
		if tok.RefreshToken == "" {
			return nil, nil
		}
		return p.encode(tok)
	})
}

// Forget revokes the grant remotely, best-effort, and deletes the stored token.
func (p *OAuthProvider) Forget(ctx context.Context) error {
	tok, err := p.load(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if tok != nil {
		target := tok.RefreshToken
		if target == "" {
			target = tok.AccessToken
		}
		if target != "" {
			_ = p.revokeRemote(ctx, target)
		}
	}
	if err := p.store.Delete(ctx, kvstore.KeyOAuthToken); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (p *OAuthProvider) revokeRemote(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("revoke: " + resp.Status)
	}
	return nil
}
