// Package photos is a thin client for the Google Photos Library REST API:
// the two-phase byte upload and item creation, plus the album and profile
// reads photodrop needs. Failures come back classified (see common.Kind).
package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/dmitrijs2005/photodrop/internal/netx"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://photoslibrary.googleapis.com/v1"
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	maxResponseBytes = 4 << 20
	albumsPageSize   = 50
)

// Client talks to the Photos Library API. Every call takes the bearer token
// explicitly so a refreshed credential can be swapped in mid-job.
type Client struct {
	baseURL     string
	userInfoURL string
	http        *http.Client
	limiter     *rate.Limiter
	log         logging.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRateLimit paces outgoing requests. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = nil
			return
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithUserInfoURL(u string) Option {
	return func(cl *Client) { cl.userInfoURL = u }
}

func WithLogger(l logging.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		userInfoURL: DefaultUserInfoURL,
		http:        http.DefaultClient,
		log:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "photos")
	return c
}

// UploadBytes performs phase A and returns the opaque upload token.
func (c *Client) UploadBytes(ctx context.Context, token string, data []byte, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	body, err := c.do(req, token)
	if err != nil {
		return "", err
	}
	uploadToken := strings.TrimSpace(string(body))
	if uploadToken == "" {
		return "", common.NewError(common.KindInternal, "Google Photos did not accept the upload.", errors.New("empty upload token"))
	}
	return uploadToken, nil
}

// CreateMediaItem performs phase B. albumID may be empty.
func (c *Client) CreateMediaItem(ctx context.Context, token, uploadToken, filename, albumID string) (*MediaItem, error) {
	payload := batchCreateRequest{
		AlbumID: albumID,
		NewMediaItems: []newMediaItem{{
			SimpleMediaItem: simpleMediaItem{FileName: filename, UploadToken: uploadToken},
		}},
	}

	var resp batchCreateResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/mediaItems:batchCreate", token, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.NewMediaItemResults) == 0 {
		return nil, common.NewError(common.KindInternal, "Google Photos returned no result for the upload.", errors.New("empty newMediaItemResults"))
	}

	result := resp.NewMediaItemResults[0]
	if result.MediaItem == nil || result.MediaItem.ID == "" {
		msg := "unknown error"
		if result.Status != nil && result.Status.Message != "" {
			msg = result.Status.Message
		}
		code := 0
		if result.Status != nil {
			code = result.Status.Code
		}
		return nil, common.NewError(common.KindInternal,
			"Google Photos could not create the item: "+msg,
			fmt.Errorf("batchCreate status %d: %s", code, msg))
	}
	return result.MediaItem, nil
}

// GetAlbum fetches one album by id.
func (c *Client) GetAlbum(ctx context.Context, token, id string) (*Album, error) {
	var a Album
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/albums/"+url.PathEscape(id), token, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppAlbums returns every album created by this application.
func (c *Client) ListAppAlbums(ctx context.Context, token string) ([]Album, error) {
	var (
		all       []Album
		pageToken string
	)
	for {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(albumsPageSize))
		q.Set("excludeNonAppCreatedData", "true")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page listAlbumsResponse
		if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/albums?"+q.Encode(), token, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Albums...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateAlbum creates an app-owned album.
func (c *Client) CreateAlbum(ctx context.Context, token, title string) (*Album, error) {
	var payload createAlbumRequest
	payload.Album.Title = title

	var a Album
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/albums", token, payload, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, common.NewError(common.KindInternal, "Google Photos did not create the album.", errors.New("album id missing"))
	}
	return &a, nil
}

// UserInfo reads the signed-in user's profile.
func (c *Client) UserInfo(ctx context.Context, token string) (*UserInfo, error) {
	var u UserInfo
	if err := c.doJSON(ctx, http.MethodGet, c.userInfoURL, token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) doJSON(ctx context.Context, method, u, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := c.do(req, token)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return common.NewError(common.KindInternal, common.MessageInternal, fmt.Errorf("decode %s response: %w", req.URL.Path, err))
	}
	return nil
}

// do sends req with the bearer token and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, token string) ([]byte, error) {
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, common.NewError(common.KindNetwork, common.MessageNetwork, fmt.Errorf("%w: %s %s: %v", common.ErrNetwork, req.Method, req.URL.Path, err))
	}
	defer resp.Body.Close()

	body, err := netx.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		if netx.IsResponseTooLarge(err) {
			return nil, common.NewError(common.KindInternal, common.MessageInternal, err)
		}
		return nil, common.NewError(common.KindNetwork, common.MessageNetwork, fmt.Errorf("%w: read response: %v", common.ErrNetwork, err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return body, nil
	}

	c.log.Debug(ctx, "photos api error", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
	return nil, statusError(resp.StatusCode, body)
}

func statusError(code int, body []byte) error {
	msg := errorMessage(body)
	switch code {
	case http.StatusUnauthorized:
		return common.NewError(common.KindTransientCredential, common.MessageCredentialExpiry, fmt.Errorf("%w: %s", common.ErrCredentialExpired, msg))
	case http.StatusForbidden:
		return common.NewError(common.KindPermissionDenied, common.MessagePermission, fmt.Errorf("%w: %s", common.ErrPermissionDenied, msg))
	case http.StatusTooManyRequests:
		return common.NewError(common.KindQuotaExceeded, common.MessageQuotaExceeded, fmt.Errorf("%w: %s", common.ErrQuotaExceeded, msg))
	}
	return common.NewError(common.KindInternal,
		fmt.Sprintf("Google Photos returned an error (HTTP %d).", code),
		&APIError{StatusCode: code, Message: msg})
}

const maxErrorMessage = 200

func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorMessage {
		n := maxErrorMessage
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}
