// Package config loads runtime configuration for photodrop.
//
// Sources and precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: PHOTODROP_CLIENT_ID, PHOTODROP_CLIENT_SECRET and
//     PHOTODROP_TOKEN_PASSPHRASE. A .env file in the working directory is
//     loaded first and never overrides variables that are already set. The
//     passphrase is read from the environment only.
//  3. Optional JSON file selected with -c / -config or $PHOTODROP_CONFIG.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-d string   path of the SQLite database
//	-l string   log level (debug, info, warn, error)
//	-m string   listen address for /metrics; empty disables it
//	-k int      keep-alive interval while an upload runs (seconds)
//	-a string   title of the album photodrop creates for its uploads
//
// # JSON schema
//
// Durations accept strings such as "25s" or integer nanoseconds:
//
//	{
//	  "database_path": "photodrop.db",
//	  "app_album_title": "Photodrop",
//	  "keep_alive_interval": "25s",
//	  "max_download_bytes": 209715200
//	}
package config
