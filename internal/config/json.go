package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/photodrop/internal/flagx"
	"github.com/dmitrijs2005/photodrop/internal/timex"
)

// JsonConfig is a DTO used only for unmarshalling. Zero values leave the
// corresponding Config field untouched.
type JsonConfig struct {
	DatabasePath      string         `json:"database_path"`
	APIBaseURL        string         `json:"api_base_url"`
	TokenInfoURL      string         `json:"token_info_url"`
	UserInfoURL       string         `json:"user_info_url"`
	OAuthClientID     string         `json:"oauth_client_id"`
	OAuthClientSecret string         `json:"oauth_client_secret"`
	AppAlbumTitle     string         `json:"app_album_title"`
	KeepAliveInterval timex.Duration `json:"keep_alive_interval"`
	ProgressFailsafe  timex.Duration `json:"progress_failsafe"`
	MaxDownloadBytes  int64          `json:"max_download_bytes"`
	RequestsPerSecond float64        `json:"requests_per_second"`
	HTTPTimeout       timex.Duration `json:"http_timeout"`
	LogLevel          string         `json:"log_level"`
	LogFormat         string         `json:"log_format"`
	MetricsAddr       string         `json:"metrics_addr"`
}

// parseJson overlays cfg with the JSON file named by -c / -config in args or
// by $PHOTODROP_CONFIG. Without either it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.TokenInfoURL, jc.TokenInfoURL)
	setString(&cfg.UserInfoURL, jc.UserInfoURL)
	setString(&cfg.OAuthClientID, jc.OAuthClientID)
	setString(&cfg.OAuthClientSecret, jc.OAuthClientSecret)
	setString(&cfg.AppAlbumTitle, jc.AppAlbumTitle)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)

	if jc.KeepAliveInterval.Duration > 0 {
		cfg.KeepAliveInterval = jc.KeepAliveInterval.Duration
	}
	if jc.ProgressFailsafe.Duration > 0 {
		cfg.ProgressFailsafe = jc.ProgressFailsafe.Duration
	}
	if jc.HTTPTimeout.Duration > 0 {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	if jc.MaxDownloadBytes > 0 {
		cfg.MaxDownloadBytes = jc.MaxDownloadBytes
	}
	if jc.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = jc.RequestsPerSecond
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
