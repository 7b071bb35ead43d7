package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/history"
	"github.com/dmitrijs2005/photodrop/internal/netx"
	"github.com/dmitrijs2005/photodrop/internal/notify"
	"github.com/dmitrijs2005/photodrop/internal/photos"
	"github.com/stretchr/testify/require"
)

var (
	errExpired = common.NewError(common.KindTransientCredential, common.MessageCredentialExpiry, fmt.Errorf("%w: 401", common.ErrCredentialExpired))
	errQuota   = common.NewError(common.KindQuotaExceeded, common.MessageQuotaExceeded, fmt.Errorf("%w: 429", common.ErrQuotaExceeded))
)

// events is a shared, ordered log of fake calls.
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.list = append(e.list, s)
	e.mu.Unlock()
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

type fakeCreds struct {
	log        *events
	AcquireErr error
	tokens     []string

	mu           sync.Mutex
	acquireCalls int
	refreshCalls int
}

func (f *fakeCreds) Acquire(context.Context) (*credentials.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireCalls++
	if f.log != nil {
		f.log.add("acquire")
	}
	if f.AcquireErr != nil {
		return nil, f.AcquireErr
	}
	return &credentials.Credential{Token: "t1"}, nil
}

func (f *fakeCreds) Refresh(_ context.Context, stale *credentials.Credential) (*credentials.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return &credentials.Credential{Token: fmt.Sprintf("t%d", f.refreshCalls+1)}, nil
}

func (f *fakeCreds) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquireCalls, f.refreshCalls
}

type fakeDownloader struct {
	log     *events
	Res     *netx.ImageResource
	Err     error
	Delay   time.Duration
	Started chan string
	Release chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeDownloader) Download(_ context.Context, url string) (*netx.ImageResource, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.log != nil {
		f.log.add("download " + url)
	}
	if f.Started != nil {
		f.Started <- url
	}
	if f.Release != nil {
		<-f.Release
	}
	time.Sleep(f.Delay)
	if f.Err != nil {
		return nil, f.Err
	}
	res := *f.Res
	return &res, nil
}

func (f *fakeDownloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePhotos struct {
	UploadErrs []error
	CreateErrs []error

	mu           sync.Mutex
	uploadTokens []string
	createTokens []string
	payloads     [][]byte
	albumIDs     []string
}

func (f *fakePhotos) UploadBytes(_ context.Context, token string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadTokens = append(f.uploadTokens, token)
	f.payloads = append(f.payloads, data)
	if len(f.UploadErrs) > 0 {
		err := f.UploadErrs[0]
		f.UploadErrs = f.UploadErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "upload-token", nil
}

func (f *fakePhotos) CreateMediaItem(_ context.Context, token, uploadToken, filename, albumID string) (*photos.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createTokens = append(f.createTokens, token)
	f.albumIDs = append(f.albumIDs, albumID)
	if len(f.CreateErrs) > 0 {
		err := f.CreateErrs[0]
		f.CreateErrs = f.CreateErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &photos.MediaItem{ID: "item-" + filename, ProductURL: "https://photos.google.com/lr/photo/1", Filename: filename}, nil
}

type fakeAlbums struct {
	ID         string
	titleCalls int
}

func (f *fakeAlbums) Resolve(context.Context, *credentials.Credential) string { return f.ID }

func (f *fakeAlbums) Title(context.Context, *credentials.Credential, string) (string, error) {
	f.titleCalls++
	return "Album", nil
}

type fakeLedger struct {
	Err     error
	records []history.Record
}

func (f *fakeLedger) Append(_ context.Context, e history.Entry) (history.Record, error) {
	if f.Err != nil {
		return history.Record{}, f.Err
	}
	r := history.Record{ID: fmt.Sprintf("rec-%d", len(f.records)+1), Filename: e.Filename, RemoteItemID: e.RemoteItemID, RemoteViewURL: e.RemoteViewURL, AlbumID: e.AlbumID}
	f.records = append(f.records, r)
	return r, nil
}

type fakeThumbs struct {
	mu   sync.Mutex
	puts map[string]string
}

func (f *fakeThumbs) Put(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = make(map[string]string)
	}
	f.puts[key] = value
	return nil
}

// directNotifier delivers synchronously so tests can assert without waiting.
type directNotifier struct{}

func (directNotifier) Show(relay notify.Relay, msg notify.Message) {
	if relay != nil {
		_ = relay.Show(context.Background(), msg)
	}
}

func (directNotifier) Dismiss(relay notify.Relay, id string) {
	if relay != nil {
		_ = relay.Dismiss(context.Background(), id)
	}
}

type countingPlatform struct {
	mu    sync.Mutex
	calls int
}

func (c *countingPlatform) KeepAlive(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return errors.New("ignored")
}

func (c *countingPlatform) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type transitions struct {
	mu  sync.Mutex
	all []Transition
}

func (r *transitions) observe(t Transition) {
	r.mu.Lock()
	r.all = append(r.all, t)
	r.mu.Unlock()
}

func (r *transitions) states(jobID string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, t := range r.all {
		if jobID == "" || t.JobID == jobID {
			out = append(out, t.To)
		}
	}
	return out
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil))
	return buf.Bytes()
}
