// Package config handles configuration loading for coven-chat.
//
// # Overview
//
// Configuration is loaded from a YAML (or, for *.toml paths, TOML) file with
// environment variable expansion. Every setting has a default, so running
// without a config file works; only login sessions need a configured secret.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_CHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven-chat/config.yaml
//  3. ~/.config/coven-chat/config.yaml
//
// A .env file in the working directory is loaded first (LoadEnvFile), so it
// can supply values referenced from the config.
//
// # Environment Variable Expansion
//
//	session:
//	  secret: "${COVEN_CHAT_SESSION_SECRET}"
//
// # Configuration Sections
//
//	database:
//	  path: "~/.local/share/coven-chat/users.db"
//	  driver: "sqlite"          # sqlite (pure Go) or sqlite3 (cgo)
//	  busy_timeout: "5s"
//
//	accounts:
//	  credentials: "plaintext"  # plaintext or bcrypt
//	  bcrypt_cost: 10
//
//	session:
//	  secret: "${COVEN_CHAT_SESSION_SECRET}"  # at least 32 bytes
//	  ttl: "720h"
//	  path: ""                  # default: ~/.config/coven-chat/session
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text, json
//	  file: ""                  # empty: stderr; otherwise rotated by size
//	  max_size_mb: 10
//	  max_files: 5
package config
