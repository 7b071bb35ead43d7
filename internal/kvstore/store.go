package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Area selects the scope of a Store.
type Area string

const (
	AreaLocal Area = "local"
	AreaSync  Area = "sync"
)

// Persisted-state keys.
const (
	KeyUploadHistory     = "uploadHistory"
	KeyUserProfile       = "userProfile"
	KeyAlbumCache        = "albumCache"
	KeyThumbnailCache    = "thumbnailCache"
	KeySelectedAlbumID   = "selectedAlbumId"
	KeyManuallyLoggedOut = "isManuallyLoggedOut"
	KeyOAuthToken        = "oauthToken"
	KeyTokenSalt         = "oauthTokenSalt"
)

// ErrSkip may be returned by an Update function to leave the key untouched.
// Update then returns nil.
var ErrSkip = errors.New("kvstore: skip update")

// Change describes one committed write.
type Change struct {
	Area    Area
	Key     string
	Value   []byte
	Deleted bool
	Cleared bool
}

// Store is a durable key-value store. Get returns (nil, nil) for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error

	// Update atomically replaces the value of key with fn(current). A nil
	// result deletes the key; ErrSkip leaves it as is.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error

	// Subscribe registers a change listener. The returned func unsubscribes.
	Subscribe(buffer int) (<-chan Change, func())

	Ping(ctx context.Context) error
}

// GetJSON decodes the value stored under key into v. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// GetBool reads a boolean flag; an absent key is false.
func GetBool(ctx context.Context, s Store, key string) (bool, error) {
	var b bool
	_, err := GetJSON(ctx, s, key, &b)
	return b, err
}

// GetString reads a string value; an absent key is "".
func GetString(ctx context.Context, s Store, key string) (string, error) {
	var v string
	_, err := GetJSON(ctx, s, key, &v)
	return v, err
}
