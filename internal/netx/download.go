package netx

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the download ceiling.
const DefaultMaxBytes int64 = 200 * 1024 * 1024

const maxRedirects = 10

// AllowedMIMETypes maps each accepted image type to its canonical extension.
var AllowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
	"image/avif": ".avif",
}

var mimeAliases = map[string]string{
	"image/jpg":      "image/jpeg",
	"image/pjpeg":    "image/jpeg",
	"image/x-png":    "image/png",
	"image/x-ms-bmp": "image/bmp",
}

const (
	messageUnknownType = "The image server did not say what kind of file this is. Open the image in its own tab and try again."
	messageUnsupported = "This file type is not supported. Google Photos accepts JPEG, PNG, GIF, WebP, HEIC, BMP, TIFF and AVIF images."
	messageDownload    = "Could not download the image. Check the link and your connection, then try again."
)

// ImageResource is a downloaded image ready for upload.
type ImageResource struct {
	Bytes     []byte
	MIMEType  string
	SizeBytes int64
	Filename  string
}

// Downloader fetches images over HTTPS, refusing private destinations both
// before the request and again for every resolved address at dial time.
type Downloader struct {
	client       *http.Client
	maxBytes     int64
	allowPrivate bool
}

type Option func(*downloaderOptions)

type downloaderOptions struct {
	transport    *http.Transport
	timeout      time.Duration
	maxBytes     int64
	allowPrivate bool
}

// WithTransport uses a clone of t as the base transport.
func WithTransport(t *http.Transport) Option {
	return func(o *downloaderOptions) { o.transport = t }
}

func WithTimeout(d time.Duration) Option {
	return func(o *downloaderOptions) { o.timeout = d }
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(o *downloaderOptions) { o.maxBytes = n }
}

// AllowPrivateNetworks disables the address checks. Tests only.
func AllowPrivateNetworks() Option {
	return func(o *downloaderOptions) { o.allowPrivate = true }
}

func NewDownloader(opts ...Option) *Downloader {
	o := downloaderOptions{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(&o)
	}

	var tr *http.Transport
	if o.transport != nil {
		tr = o.transport.Clone()
	} else {
		tr = http.DefaultTransport.(*http.Transport).Clone()
	}
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	if !o.allowPrivate {
		dialer.Control = denyPrivate
	}
	tr.DialContext = dialer.DialContext
	tr.Proxy = nil

	d := &Downloader{maxBytes: o.maxBytes, allowPrivate: o.allowPrivate}
	d.client = &http.Client{
		Transport: tr,
		Timeout:   o.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			_, err := validateURL(req.URL.String(), d.allowPrivate)
			return err
		},
	}
	return d
}

func denyPrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: unresolved address %q", common.ErrPrivateNetwork, host)
	}
	if IsBlockedAddr(addr) {
		return fmt.Errorf("%w: %s", common.ErrPrivateNetwork, addr)
	}
	return nil
}

// Download fetches raw and returns the validated image.
func (d *Downloader) Download(ctx context.Context, raw string) (*ImageResource, error) {
	u, err := validateURL(raw, d.allowPrivate)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, common.Validation(messageBadURL, fmt.Errorf("%w: %v", common.ErrInvalidURL, err))
	}
	req.Header.Set("Accept", "image/*")

	resp, err := d.client.Do(req)
	if err != nil {
		var ce *common.Error
		if errors.As(err, &ce) {
			return nil, ce
		}
		if errors.Is(err, common.ErrPrivateNetwork) {
			return nil, common.Validation(messagePrivateURL, err)
		}
		return nil, common.NewError(common.KindNetwork, messageDownload, fmt.Errorf("%w: %v", common.ErrNetwork, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, common.NewError(common.KindNetwork, messageDownload, fmt.Errorf("download %s: status %d", u.Redacted(), resp.StatusCode))
	}

	if resp.ContentLength > d.maxBytes {
		return nil, d.tooLarge(resp.ContentLength)
	}

	declared, err := declaredType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	body, err := ReadAllWithLimit(resp.Body, d.maxBytes)
	if err != nil {
		if IsResponseTooLarge(err) {
			return nil, d.tooLarge(-1)
		}
		return nil, common.NewError(common.KindNetwork, messageDownload, fmt.Errorf("%w: read body: %v", common.ErrNetwork, err))
	}

	mt := declared
	if sniffed := baseType(mimetype.Detect(body).String()); sniffed != declared {
		if _, ok := AllowedMIMETypes[sniffed]; ok {
			mt = sniffed
		}
	}

	return &ImageResource{
		Bytes:     body,
		MIMEType:  mt,
		SizeBytes: int64(len(body)),
		Filename:  Filename(u.Path, mt),
	}, nil
}

func (d *Downloader) tooLarge(size int64) error {
	msg := fmt.Sprintf("Image exceeds %dMB limit.", d.maxBytes/(1024*1024))
	if size >= 0 {
		return common.Validation(msg, fmt.Errorf("%w: %d bytes", common.ErrTooLarge, size))
	}
	return common.Validation(msg, common.ErrTooLarge)
}

// declaredType checks the Content-Type header against the allow-list.
func declaredType(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", common.Validation(messageUnknownType, common.ErrUnknownContentType)
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", common.Validation(messageUnknownType, fmt.Errorf("%w: %q", common.ErrUnknownContentType, header))
	}
	if canonical, ok := mimeAliases[mt]; ok {
		mt = canonical
	}
	switch mt {
	case "application/octet-stream", "binary/octet-stream":
		return "", common.Validation(messageUnknownType, fmt.Errorf("%w: %s", common.ErrUnknownContentType, mt))
	}
	if _, ok := AllowedMIMETypes[mt]; !ok {
		return "", common.Validation(messageUnsupported, fmt.Errorf("%w: %s", common.ErrUnsupportedMIME, mt))
	}
	return mt, nil
}

func baseType(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return s
	}
	return mt
}

// Filename derives an upload filename from a URL path, adding the extension
// for mimeType when the path has none.
func Filename(urlPath, mimeType string) string {
	name := path.Base(urlPath)
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	if path.Ext(name) != "" {
		return name
	}
	if ext, ok := AllowedMIMETypes[mimeType]; ok {
		return name + ext
	}
	if m := mimetype.Lookup(mimeType); m != nil {
		return name + m.Extension()
	}
	return name
}
