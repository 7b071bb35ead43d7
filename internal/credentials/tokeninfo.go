package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/netx"
)

const DefaultTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"

// TokenInfoClient introspects tokens against Google's tokeninfo endpoint.
type TokenInfoClient struct {
	url  string
	http *http.Client
}

func NewTokenInfoClient(endpoint string, client *http.Client) *TokenInfoClient {
	if endpoint == "" {
		endpoint = DefaultTokenInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenInfoClient{url: endpoint, http: client}
}

// Introspect returns the token's remaining lifetime. A missing or
// unparseable expires_in, or one below MinRemaining, is ErrTokenInvalid.
func (c *TokenInfoClient) Introspect(ctx context.Context, token string) (time.Duration, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return 0, fmt.Errorf("tokeninfo url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := netx.ReadAllWithLimit(resp.Body, 64<<10)
	if err != nil {
		return 0, fmt.Errorf("tokeninfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: tokeninfo status %d", ErrTokenInvalid, resp.StatusCode)
	}

	var info struct {
		ExpiresIn json.RawMessage `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, fmt.Errorf("%w: decode tokeninfo: %v", ErrTokenInvalid, err)
	}
	secs, ok := parseExpiresIn(info.ExpiresIn)
	if !ok {
		return 0, fmt.Errorf("%w: expires_in missing or malformed", ErrTokenInvalid)
	}
	remaining := time.Duration(secs) * time.Second
	if remaining < MinRemaining {
		return remaining, fmt.Errorf("%w: expires in %s", ErrTokenInvalid, remaining)
	}
	return remaining, nil
}

// parseExpiresIn accepts a JSON number or a numeric string.
func parseExpiresIn(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
