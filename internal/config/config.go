package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvClientID     = "PHOTODROP_CLIENT_ID"
	EnvClientSecret = "PHOTODROP_CLIENT_SECRET"
	EnvPassphrase   = "PHOTODROP_TOKEN_PASSPHRASE"
)

// Config holds runtime settings for the photodrop CLI.
type Config struct {
	DatabasePath string

	APIBaseURL   string
	TokenInfoURL string
	UserInfoURL  string

	OAuthClientID     string
	OAuthClientSecret string
	// TokenPassphrase, when set, encrypts the stored OAuth token.
	TokenPassphrase string

	AppAlbumTitle string

	KeepAliveInterval time.Duration
	ProgressFailsafe  time.Duration

	MaxDownloadBytes  int64
	RequestsPerSecond float64
	HTTPTimeout       time.Duration

	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "photodrop.db"
	c.APIBaseURL = "https://photoslibrary.googleapis.com/v1"
	c.TokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	c.UserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	c.AppAlbumTitle = "Photodrop"
	c.KeepAliveInterval = 25 * time.Second
	c.ProgressFailsafe = 60 * time.Second
	c.MaxDownloadBytes = 200 << 20
	c.RequestsPerSecond = 5
	c.HTTPTimeout = 60 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.MetricsAddr = ""
}

// Load builds a Config from defaults, the environment, an optional JSON file
// and the flags in args (without the program name). Later sources take
// precedence over earlier ones.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	parseEnv(cfg, getenv)
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func parseEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvClientID); v != "" {
		cfg.OAuthClientID = v
	}
	if v := getenv(EnvClientSecret); v != "" {
		cfg.OAuthClientSecret = v
	}
	if v := getenv(EnvPassphrase); v != "" {
		cfg.TokenPassphrase = v
	}
}
