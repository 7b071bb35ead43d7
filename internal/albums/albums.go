// Package albums manages the album uploads go to: the user's selection,
// stored in the synced area, and the application's own album that replaces
// a selection the app may no longer write to.
package albums

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/photodrop/internal/cache"
	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/dmitrijs2005/photodrop/internal/photos"
)

const DefaultAppAlbumTitle = "Photodrop"

// API is the subset of the Photos client used for albums.
type API interface {
	GetAlbum(ctx context.Context, token, id string) (*photos.Album, error)
	ListAppAlbums(ctx context.Context, token string) ([]photos.Album, error)
	CreateAlbum(ctx context.Context, token, title string) (*photos.Album, error)
}

type Service struct {
	api      API
	synced   kvstore.Store
	titles   *cache.Cache[string]
	appTitle string
	log      logging.Logger
}

// NewService builds an album service. synced holds the selection; titles
// memoizes album id to title.
func NewService(api API, synced kvstore.Store, titles *cache.Cache[string], appTitle string, log logging.Logger) *Service {
	if appTitle == "" {
		appTitle = DefaultAppAlbumTitle
	}
	return &Service{
		api:      api,
		synced:   synced,
		titles:   titles,
		appTitle: appTitle,
		log:      log.With("component", "albums"),
	}
}

// Resolve returns the album id the next upload should go to, or "" for the
// main library. A selection the app can not write to is migrated to the app
// album; a selection that fails validation is cleared.
func (s *Service) Resolve(ctx context.Context, cred *credentials.Credential) string {
	id, err := s.Selected(ctx)
	if err != nil {
		s.log.Warn(ctx, "read selected album failed", "error", err)
		return ""
	}
	if id == "" {
		return ""
	}

	album, err := s.api.GetAlbum(ctx, cred.Token, id)
	if err != nil {
		s.log.Warn(ctx, "selected album failed validation, uploading to library", "album_id", id, "error", err)
		s.clear(ctx)
		return ""
	}
	if album.IsWriteable {
		s.rememberTitle(ctx, album)
		return album.ID
	}

	app, err := s.GetOrCreateAppAlbum(ctx, cred)
	if err != nil {
		s.log.Warn(ctx, "app album unavailable, uploading to library", "error", err)
		s.clear(ctx)
		return ""
	}
	if err := s.Select(ctx, app.ID); err != nil {
		s.log.Warn(ctx, "persist migrated album failed", "error", err)
	}
	s.log.Info(ctx, "migrated album selection to app album", "from", id, "to", app.ID)
	return app.ID
}

// GetOrCreateAppAlbum finds the app album by title, creating it if needed.
func (s *Service) GetOrCreateAppAlbum(ctx context.Context, cred *credentials.Credential) (*photos.Album, error) {
	list, err := s.api.ListAppAlbums(ctx, cred.Token)
	if err != nil {
		return nil, fmt.Errorf("list app albums: %w", err)
	}
	for i := range list {
		if list[i].Title == s.appTitle && list[i].IsWriteable {
			s.rememberTitle(ctx, &list[i])
			return &list[i], nil
		}
	}

	created, err := s.api.CreateAlbum(ctx, cred.Token, s.appTitle)
	if err != nil {
		return nil, fmt.Errorf("create app album: %w", err)
	}
	created.IsWriteable = true
	s.rememberTitle(ctx, created)
	return created, nil
}

// List returns the app-created albums and warms the title cache.
func (s *Service) List(ctx context.Context, cred *credentials.Credential) ([]photos.Album, error) {
	list, err := s.api.ListAppAlbums(ctx, cred.Token)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	for i := range list {
		s.rememberTitle(ctx, &list[i])
	}
	return list, nil
}

// Title returns the album title, from cache when possible.
func (s *Service) Title(ctx context.Context, cred *credentials.Credential, id string) (string, error) {
	if title, ok, err := s.titles.Get(ctx, id); err == nil && ok {
		return title, nil
	}
	album, err := s.api.GetAlbum(ctx, cred.Token, id)
	if err != nil {
		return "", fmt.Errorf("get album %s: %w", id, err)
	}
	s.rememberTitle(ctx, album)
	return album.Title, nil
}

// Select stores id as the upload target. An empty id clears the selection.
func (s *Service) Select(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.synced.Delete(ctx, kvstore.KeySelectedAlbumID)
	}
	return kvstore.SetJSON(ctx, s.synced, kvstore.KeySelectedAlbumID, id)
}

// Selected returns the stored selection or "".
func (s *Service) Selected(ctx context.Context) (string, error) {
	return kvstore.GetString(ctx, s.synced, kvstore.KeySelectedAlbumID)
}

func (s *Service) clear(ctx context.Context) {
	if err := s.Select(ctx, ""); err != nil {
		s.log.Warn(ctx, "clear album selection failed", "error", err)
	}
}

func (s *Service) rememberTitle(ctx context.Context, a *photos.Album) {
	if a == nil || a.ID == "" || a.Title == "" {
		return
	}
	if err := s.titles.Put(ctx, a.ID, a.Title); err != nil {
		s.log.Debug(ctx, "cache album title failed", "error", err)
	}
}
