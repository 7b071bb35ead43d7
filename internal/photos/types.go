package photos

import "fmt"

// MediaItem is a created remote item.
type MediaItem struct {
	ID         string `json:"id"`
	ProductURL string `json:"productUrl"`
	BaseURL    string `json:"baseUrl"`
	MimeType   string `json:"mimeType"`
	Filename   string `json:"filename"`
}

// Album is a remote album. MediaItemsCount is transmitted as a string.
type Album struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ProductURL      string `json:"productUrl,omitempty"`
	IsWriteable     bool   `json:"isWriteable,omitempty"`
	MediaItemsCount int64  `json:"mediaItemsCount,omitempty,string"`
}

// UserInfo is the subset of the OpenID userinfo response photodrop shows.
type UserInfo struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Email   string `json:"email"`
}

// APIError is a non-2xx response that maps to no specific failure kind.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("photos api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("photos api: status %d: %s", e.StatusCode, e.Message)
}

type batchCreateRequest struct {
	AlbumID       string         `json:"albumId,omitempty"`
	NewMediaItems []newMediaItem `json:"newMediaItems"`
}

type newMediaItem struct {
	SimpleMediaItem simpleMediaItem `json:"simpleMediaItem"`
}

type simpleMediaItem struct {
	FileName    string `json:"fileName"`
	UploadToken string `json:"uploadToken"`
}

type batchCreateResponse struct {
	NewMediaItemResults []struct {
		UploadToken string     `json:"uploadToken"`
		Status      *status    `json:"status"`
		MediaItem   *MediaItem `json:"mediaItem"`
	} `json:"newMediaItemResults"`
}

type status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type listAlbumsResponse struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

type createAlbumRequest struct {
	Album struct {
		Title string `json:"title"`
	} `json:"album"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
