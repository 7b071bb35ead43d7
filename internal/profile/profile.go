// Package profile serves the signed-in user's display profile.
package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/cache"
	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/dmitrijs2005/photodrop/internal/photos"
)

const cacheKey = "me"

type Profile struct {
	Name        string `json:"name"`
	PhotoURL    string `json:"photoUrl"`
	LastUpdated int64  `json:"lastUpdated"`
}

type UserInfoAPI interface {
	UserInfo(ctx context.Context, token string) (*photos.UserInfo, error)
}

type Service struct {
	api   UserInfoAPI
	cache *cache.Cache[Profile]
	now   func() time.Time
	log   logging.Logger
}

func NewService(api UserInfoAPI, c *cache.Cache[Profile], log logging.Logger) *Service {
	return &Service{api: api, cache: c, now: time.Now, log: log.With("component", "profile")}
}

// Current returns the cached profile or fetches and caches it.
func (s *Service) Current(ctx context.Context, cred *credentials.Credential) (*Profile, error) {
	if p, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
		s.log.Warn(ctx, "profile cache read failed", "error", err)
	} else if ok {
		return &p, nil
	}

	info, err := s.api.UserInfo(ctx, cred.Token)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	p := Profile{Name: info.Name, PhotoURL: info.Picture, LastUpdated: s.now().UnixMilli()}
	if err := s.cache.Put(ctx, cacheKey, p); err != nil {
		s.log.Warn(ctx, "profile cache write failed", "error", err)
	}
	return &p, nil
}
