package cli

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/history"
	"github.com/dmitrijs2005/photodrop/internal/photos"
	"github.com/dmitrijs2005/photodrop/internal/pipeline"
	"github.com/dmitrijs2005/photodrop/internal/profile"
)

type fakeUploads struct {
	mu       sync.Mutex
	requests []pipeline.Request
	pending  int
}

func (f *fakeUploads) Enqueue(_ context.Context, req pipeline.Request) <-chan pipeline.Outcome[pipeline.Result] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.pending++
	ch := make(chan pipeline.Outcome[pipeline.Result], 1)
	ch <- pipeline.Outcome[pipeline.Result]{}
	return ch
}

func (f *fakeUploads) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

type fakeHistory struct {
	Records   []history.Record
	ListErr   error
	RemoveErr error
	removed   []string
}

func (f *fakeHistory) List(context.Context) ([]history.Record, error) {
	return f.Records, f.ListErr
}

func (f *fakeHistory) Remove(_ context.Context, id string) (bool, error) {
	if f.RemoveErr != nil {
		return false, f.RemoveErr
	}
	for i, r := range f.Records {
		if r.ID == id {
			f.Records = append(f.Records[:i], f.Records[i+1:]...)
			f.removed = append(f.removed, id)
			return true, nil
		}
	}
	return false, nil
}

type fakeAlbums struct {
	Items     []photos.Album
	ListErr   error
	SelectErr error
	selected  string
}

func (f *fakeAlbums) List(context.Context, *credentials.Credential) ([]photos.Album, error) {
	return f.Items, f.ListErr
}

func (f *fakeAlbums) Select(_ context.Context, id string) error {
	if f.SelectErr != nil {
		return f.SelectErr
	}
	f.selected = id
	return nil
}

func (f *fakeAlbums) Selected(context.Context) (string, error) { return f.selected, nil }

type fakeProfile struct {
	Profile *profile.Profile
	Err     error
}

func (f *fakeProfile) Current(context.Context, *credentials.Credential) (*profile.Profile, error) {
	return f.Profile, f.Err
}

type fakeAccount struct {
	LoginErr  error
	LogoutErr error
	logins    int
	logouts   int
}

func (f *fakeAccount) Login(context.Context) (*credentials.Credential, error) {
	f.logins++
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	return &credentials.Credential{Token: "tok"}, nil
}

func (f *fakeAccount) Logout(context.Context) error {
	f.logouts++
	return f.LogoutErr
}

type fakeCreds struct {
	Err   error
	calls int
}

func (f *fakeCreds) Acquire(context.Context) (*credentials.Credential, error) {
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return &credentials.Credential{Token: "tok"}, nil
}
