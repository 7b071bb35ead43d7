package netx

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func newTestDownloader(srv *httptest.Server, opts ...Option) *Downloader {
	opts = append([]Option{
		WithTransport(srv.Client().Transport.(*http.Transport)),
		AllowPrivateNetworks(),
	}, opts...)
	return NewDownloader(opts...)
}

func TestDownload_OK(t *testing.T) {
	body := pngBytes(t)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	res, err := newTestDownloader(srv).Download(context.Background(), srv.URL+"/pics/sunset")
	require.NoError(t, err)
	assert.Equal(t, body, res.Bytes)
	assert.Equal(t, "image/png", res.MIMEType)
	assert.Equal(t, int64(len(body)), res.SizeBytes)
	assert.Equal(t, "sunset.png", res.Filename)
}

func TestDownload_SniffedTypeWins(t *testing.T) {
	body := pngBytes(t)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	res, err := newTestDownloader(srv).Download(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MIMEType)
}

func TestDownload_ContentTypeErrors(t *testing.T) {
	tests := []struct {
		name    string
		ct      string
		wantErr error
	}{
		{"empty", "", common.ErrUnknownContentType},
		{"octet stream", "application/octet-stream", common.ErrUnknownContentType},
		{"garbage", ";;;", common.ErrUnknownContentType},
		{"html", "text/html; charset=utf-8", common.ErrUnsupportedMIME},
		{"svg", "image/svg+xml", common.ErrUnsupportedMIME},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header()["Content-Type"] = []string{tt.ct}
				_, _ = w.Write([]byte("data"))
			}))
			defer srv.Close()

			_, err := newTestDownloader(srv).Download(context.Background(), srv.URL+"/x")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, common.KindValidation, common.KindOf(err))
		})
	}
}

func TestDownload_ContentLengthTooLarge(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(210*1024*1024))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestDownloader(srv).Download(context.Background(), srv.URL+"/big.jpg")
	require.ErrorIs(t, err, common.ErrTooLarge)
	assert.Equal(t, "Image exceeds 200MB limit.", common.UserMessage(err))
}

func TestDownload_StreamedBodyTooLarge(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 4; i++ {
			_, _ = w.Write(make([]byte, 1024*1024))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	d := newTestDownloader(srv, WithMaxBytes(2*1024*1024))
	_, err := d.Download(context.Background(), srv.URL+"/big.jpg")
	require.ErrorIs(t, err, common.ErrTooLarge)
	assert.Equal(t, "Image exceeds 2MB limit.", common.UserMessage(err))
}

func TestDownload_HTTPError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestDownloader(srv).Download(context.Background(), srv.URL+"/gone.jpg")
	require.Error(t, err)
	assert.Equal(t, common.KindNetwork, common.KindOf(err))
}

func TestDownload_RejectsBeforeRequest(t *testing.T) {
	var hits int
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	d := NewDownloader(WithTransport(srv.Client().Transport.(*http.Transport)))
	_, err := d.Download(context.Background(), srv.URL+"/x")
	require.ErrorIs(t, err, common.ErrPrivateNetwork)
	assert.Zero(t, hits)
}

func TestDownload_RedirectToHTTPRejected(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://example.com/x.jpg", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestDownloader(srv).Download(context.Background(), srv.URL+"/x")
	require.ErrorIs(t, err, common.ErrUnsupportedScheme)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "cat.jpg", Filename("/a/cat.jpg", "image/png"))
	assert.Equal(t, "cat.webp", Filename("/a/cat", "image/webp"))
	assert.Equal(t, "image.jpg", Filename("/", "image/jpeg"))
	assert.Equal(t, "image.jpg", Filename("", "image/jpeg"))
}

func TestReadAllWithLimit(t *testing.T) {
	data, err := ReadAllWithLimit(bytes.NewReader([]byte("abc")), 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = ReadAllWithLimit(bytes.NewReader([]byte("abcd")), 3)
	assert.True(t, IsResponseTooLarge(err))

	data, err = ReadAllWithLimit(bytes.NewReader([]byte("abcd")), 0)
	require.NoError(t, err)
	assert.Len(t, data, 4)
}
