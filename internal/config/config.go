// ABOUTME: Configuration loading and parsing for coven-chat
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinSessionSecretLength is the shortest accepted session signing secret.
const MinSessionSecretLength = 32

// Config represents the complete coven-chat configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Accounts AccountsConfig `yaml:"accounts" toml:"accounts"`
	Session  SessionConfig  `yaml:"session" toml:"session"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)

	BusyTimeout    time.Duration `yaml:"-" toml:"-"`
	BusyTimeoutRaw string        `yaml:"busy_timeout" toml:"busy_timeout"`
}

// AccountsConfig selects how passwords are stored
type AccountsConfig struct {
	Credentials string `yaml:"credentials" toml:"credentials"` // plaintext or bcrypt
	BcryptCost  int    `yaml:"bcrypt_cost" toml:"bcrypt_cost"`
}

// SessionConfig holds the CLI login session settings
type SessionConfig struct {
	Secret string `yaml:"secret" toml:"secret"`
	Path   string `yaml:"path" toml:"path"` // where the session token is kept

	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" toml:"level"`
	Format    string `yaml:"format" toml:"format"`
	File      string `yaml:"file" toml:"file"` // empty logs to stderr
	MaxSizeMB int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" toml:"max_files"`
}

// DefaultConfigPath returns the path to the config file.
// Priority: COVEN_CHAT_CONFIG env var > XDG_CONFIG_HOME/coven-chat/config.yaml > ~/.config/coven-chat/config.yaml
func DefaultConfigPath() string {
	if envPath := os.Getenv("COVEN_CHAT_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDataDir returns the coven-chat data directory.
// Priority: XDG_DATA_HOME/coven-chat > ~/.local/share/coven-chat
func DefaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "coven-chat")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "." // fallback
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "coven-chat")
}

// Default returns a configuration usable without a config file.
// The session secret is left empty; login needs one to be configured.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:           filepath.Join(DefaultDataDir(), "users.db"),
			Driver:         "sqlite",
			BusyTimeout:    5 * time.Second,
			BusyTimeoutRaw: "5s",
		},
		Accounts: AccountsConfig{
			Credentials: "plaintext",
			BcryptCost:  10,
		},
		Session: SessionConfig{
			Path:   filepath.Join(configDir(), "session"),
			TTL:    30 * 24 * time.Hour,
			TTLRaw: "720h",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Values not present in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	expandPaths(cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns Default() when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// expandPaths resolves a leading ~/ in path settings
func expandPaths(cfg *Config) {
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Session.Path = expandHome(cfg.Session.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, p[2:])
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	switch c.Accounts.Credentials {
	case "plaintext":
	case "bcrypt":
		// bcrypt accepts costs 4 through 31
		if c.Accounts.BcryptCost < 4 || c.Accounts.BcryptCost > 31 {
			return fmt.Errorf("accounts.bcrypt_cost must be between 4 and 31, got %d", c.Accounts.BcryptCost)
		}
	default:
		return fmt.Errorf("accounts.credentials must be plaintext or bcrypt, got %q", c.Accounts.Credentials)
	}

	if c.Session.Secret != "" && len(c.Session.Secret) < MinSessionSecretLength {
		return fmt.Errorf("session.secret must be at least %d bytes", MinSessionSecretLength)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Database.BusyTimeoutRaw != "" {
		cfg.Database.BusyTimeout, err = time.ParseDuration(cfg.Database.BusyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing busy_timeout %q: %w", cfg.Database.BusyTimeoutRaw, err)
		}
	}

	if cfg.Session.TTLRaw != "" {
		cfg.Session.TTL, err = time.ParseDuration(cfg.Session.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", cfg.Session.TTLRaw, err)
		}
	}

	return nil
}
