package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/dmitrijs2005/photodrop/internal/history"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/dmitrijs2005/photodrop/internal/notify"
	"github.com/dmitrijs2005/photodrop/internal/photos"
	"github.com/dmitrijs2005/photodrop/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type testApp struct {
	*App
	out      *lockedBuffer
	uploads  *fakeUploads
	history  *fakeHistory
	albums   *fakeAlbums
	profile  *fakeProfile
	account  *fakeAccount
	creds    *fakeCreds
	recorder *notify.Recorder
}

func newTestApp() *testApp {
	ta := &testApp{
		out:      &lockedBuffer{},
		uploads:  &fakeUploads{},
		history:  &fakeHistory{},
		albums:   &fakeAlbums{},
		profile:  &fakeProfile{Profile: &profile.Profile{Name: "Ann", PhotoURL: "https://img.example/ann.png"}},
		account:  &fakeAccount{},
		creds:    &fakeCreds{},
		recorder: &notify.Recorder{},
	}
	ta.App = NewApp(Deps{
		Uploads:     ta.uploads,
		History:     ta.history,
		Albums:      ta.albums,
		Profile:     ta.profile,
		Account:     ta.account,
		Credentials: ta.creds,
		Surface:     ta.recorder,
	}, ta.out)
	return ta
}

func TestUpload(t *testing.T) {
	a := newTestApp()

	require.ErrorIs(t, a.Upload(context.Background(), nil), errUsage)
	assert.Contains(t, a.out.String(), "Usage: upload")

	require.NoError(t, a.Upload(context.Background(), []string{"https://x.example/a.jpg", "https://x.example/post"}))
	require.Len(t, a.uploads.requests, 1)
	req := a.uploads.requests[0]
	assert.Equal(t, "https://x.example/a.jpg", req.ImageURL)
	assert.Equal(t, "https://x.example/post", req.OriginURL)
	assert.Same(t, a.recorder, req.Surface)
	assert.Contains(t, a.out.String(), "Queued https://x.example/a.jpg (1 pending)")
}

func TestHistoryAndDelete(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()

	require.NoError(t, a.History(ctx))
	assert.Contains(t, a.out.String(), "No uploads yet.")

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	a.history.Records = []history.Record{
		{ID: "r2", Timestamp: ts.UnixMilli(), Filename: "b.jpg", RemoteViewURL: "https://photos.example/b"},
		{ID: "r1", Timestamp: ts.UnixMilli(), Filename: "a.jpg", RemoteViewURL: "https://photos.example/a"},
	}
	a.out.Reset()
	require.NoError(t, a.History(ctx))
	lines := strings.Split(strings.TrimSpace(a.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "r2  2024-05-01 10:00:00  b.jpg  https://photos.example/b", lines[0])

	require.ErrorIs(t, a.Delete(ctx, nil), errUsage)

	a.out.Reset()
	require.NoError(t, a.Delete(ctx, []string{"r1"}))
	assert.Contains(t, a.out.String(), "Deleted r1")
	assert.Equal(t, []string{"r1"}, a.history.removed)

	a.out.Reset()
	require.NoError(t, a.Delete(ctx, []string{"missing"}))
	assert.Contains(t, a.out.String(), "No history entry missing")

	a.history.ListErr = errors.New("disk")
	a.out.Reset()
	require.Error(t, a.History(ctx))
	assert.Contains(t, a.out.String(), "Error: "+common.MessageInternal)
	assert.NotContains(t, a.out.String(), "disk")
}

func TestAlbums(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()

	require.NoError(t, a.Albums(ctx))
	assert.Contains(t, a.out.String(), "No albums yet.")

	a.albums.Items = []photos.Album{
		{ID: "A1", Title: "Photodrop", MediaItemsCount: 3},
		{ID: "A2", Title: "Trips", MediaItemsCount: 12},
	}
	require.NoError(t, a.Album(ctx, []string{"A2"}))
	assert.Equal(t, "A2", a.albums.selected)

	a.out.Reset()
	require.NoError(t, a.Albums(ctx))
	assert.Contains(t, a.out.String(), "  A1  Photodrop (3 items)")
	assert.Contains(t, a.out.String(), "* A2  Trips (12 items)")

	require.NoError(t, a.Album(ctx, []string{"NONE"}))
	assert.Empty(t, a.albums.selected)
	require.ErrorIs(t, a.Album(ctx, nil), errUsage)
}

func TestAlbums_NotSignedIn(t *testing.T) {
	a := newTestApp()
	a.creds.Err = common.NewError(common.KindPermissionDenied, common.MessageNotSignedIn, common.ErrNotSignedIn)

	require.Error(t, a.Albums(context.Background()))
	assert.Contains(t, a.out.String(), common.MessageNotSignedIn)
}

func TestLoginWhoAmILogout(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()

	require.NoError(t, a.Login(ctx))
	assert.Equal(t, 1, a.account.logins)
	assert.Equal(t, "(Ann)", a.getStatus())

	a.out.Reset()
	require.NoError(t, a.WhoAmI(ctx))
	assert.Contains(t, a.out.String(), "Signed in as Ann")
	assert.Contains(t, a.out.String(), "https://img.example/ann.png")

	require.NoError(t, a.Logout(ctx))
	assert.Equal(t, 1, a.account.logouts)
	assert.Equal(t, "", a.getStatus())

	a.account.LogoutErr = errors.New("partial")
	require.Error(t, a.Logout(ctx))
	assert.Equal(t, "", a.getStatus())
}

func TestLogin_ProfileFailureStillSignsIn(t *testing.T) {
	a := newTestApp()
	a.profile.Err = errors.New("userinfo down")

	require.NoError(t, a.Login(context.Background()))
	assert.Contains(t, a.out.String(), "Signed in as Google account")
}

func TestLogin_Failure(t *testing.T) {
	a := newTestApp()
	a.account.LoginErr = common.NewError(common.KindPermissionDenied, common.MessageNotSignedIn, common.ErrNotSignedIn)

	require.Error(t, a.Login(context.Background()))
	assert.Contains(t, a.out.String(), "Error: "+common.MessageNotSignedIn)
	assert.Equal(t, "", a.getStatus())
}

func TestStatus(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()
	a.history.Records = []history.Record{{ID: "r1"}}
	a.albums.selected = "A9"
	a.uploads.pending = 2

	require.NoError(t, a.Status(ctx))
	out := a.out.String()
	assert.Contains(t, out, "Account: unknown")
	assert.Contains(t, out, "Target album: A9")
	assert.Contains(t, out, "Uploads in history: 1")
	assert.Contains(t, out, "Jobs pending: 2")
	assert.Equal(t, "(2 pending)", a.getStatus())
}

func TestAlbumNone_TargetsMainLibrary(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()
	a.albums.selected = "A9"

	require.NoError(t, a.Album(ctx, []string{"none"}))
	assert.Equal(t, "", a.albums.selected)
	assert.Contains(t, a.out.String(), "Uploads go to the main library.")

	a.out.Reset()
	require.NoError(t, a.Status(ctx))
	assert.Contains(t, a.out.String(), "Target album: main library")
}

func TestRun_ReportsHistoryChanges(t *testing.T) {
	a := newTestApp()
	store := kvstore.NewMemoryStore(kvstore.AreaLocal)
	a.deps.Changes = store

	ctx := context.Background()
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx, pr)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(a.out.String(), "photodrop> ")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, kvstore.SetJSON(ctx, store, kvstore.KeyUploadHistory, []history.Record{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, store.Set(ctx, kvstore.KeySelectedAlbumID, []byte(`"x"`)))
	require.NoError(t, store.Delete(ctx, kvstore.KeyUploadHistory))

	require.Eventually(t, func() bool {
		s := a.out.String()
		return strings.Contains(s, "History updated: 2 uploads") && strings.Contains(s, "History cleared.")
	}, time.Second, 5*time.Millisecond)

	_, err := io.WriteString(pw, "exit\n")
	require.NoError(t, err)
	<-done
	assert.Contains(t, a.out.String(), "Welcome to photodrop")
	assert.Contains(t, a.out.String(), "Bye!")
}
