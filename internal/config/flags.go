package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-d string   database path
//	-l string   log level
//	-m string   metrics listen address
//	-k int      keep-alive interval in seconds
//	-a string   app album title
//
// Only these flags are looked at; anything else in args is ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-l", "-m", "-k", "-a"})

	fs := flag.NewFlagSet("photodrop", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the SQLite database")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.AppAlbumTitle, "a", cfg.AppAlbumTitle, "app album title")
	keepAlive := fs.Int("k", int(cfg.KeepAliveInterval.Seconds()), "keep-alive interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if *keepAlive <= 0 {
		return fmt.Errorf("invalid flags: keep-alive interval must be positive, got %d", *keepAlive)
	}

	cfg.KeepAliveInterval = time.Duration(*keepAlive) * time.Second
	return nil
}
