// Package config handles the configuration directory, its files, and settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// AppName is the application directory name.
	AppName = "todosync"

	// SettingsFile is the TOML settings filename.
	SettingsFile = "config.toml"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// OrderFile is the JSON key/value file used by the file order store.
	OrderFile = "order.json"

	// OrderDatabase is the SQLite database used by the sqlite order store.
	OrderDatabase = "order.sqlite3"
)

// Backend names.
const (
	BackendREST        = "rest"
	BackendGoogleTasks = "googletasks"
)

// Order store names.
const (
	OrderStoreFile   = "file"
	OrderStoreSQLite = "sqlite"
)

// Defaults.
const (
	DefaultAPIURL     = "http://localhost:3001"
	DefaultTaskList   = "@default"
	DefaultDebounceMS = 300
	DefaultTimeout    = 5
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Settings are the values read from config.toml and the environment.
type Settings struct {
	Backend        string `toml:"backend"`
	APIURL         string `toml:"api_url"`
	TaskList       string `toml:"task_list"`
	UserID         string `toml:"user_id"`
	OrderStore     string `toml:"order_store"`
	DebounceMS     int    `toml:"debounce_ms"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	Settings Settings
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/todosync or $HOME/.config/todosync.
// Settings are loaded from config.toml (if present) and then the environment.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir, Settings: DefaultSettings()}

	if err := loadSettingsFile(&cfg.Settings, cfg.SettingsPath()); err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.SettingsPath(), err)
	}
	loadFromEnv(&cfg.Settings)

	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultSettings returns settings populated with defaults.
func DefaultSettings() Settings {
	return Settings{
		Backend:        BackendREST,
		APIURL:         DefaultAPIURL,
		TaskList:       DefaultTaskList,
		OrderStore:     OrderStoreFile,
		DebounceMS:     DefaultDebounceMS,
		TimeoutSeconds: DefaultTimeout,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// Validate checks enumerated settings.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendREST, BackendGoogleTasks:
	default:
		return fmt.Errorf("invalid backend %q (want %s or %s)", s.Backend, BackendREST, BackendGoogleTasks)
	}
	switch s.OrderStore {
	case OrderStoreFile, OrderStoreSQLite:
	default:
		return fmt.Errorf("invalid order_store %q (want %s or %s)", s.OrderStore, OrderStoreFile, OrderStoreSQLite)
	}
	if s.DebounceMS < 0 {
		return fmt.Errorf("invalid debounce_ms %d", s.DebounceMS)
	}
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid timeout_seconds %d", s.TimeoutSeconds)
	}
	return nil
}

// Debounce returns the mutation debounce window.
func (s Settings) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// Timeout returns the per-request API timeout.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// loadSettingsFile decodes config.toml over s. A missing file is not an error.
func loadSettingsFile(s *Settings, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	_, err := toml.DecodeFile(path, s)
	return err
}

// loadFromEnv overrides settings from TODOSYNC_* environment variables.
func loadFromEnv(s *Settings) {
	if v := env("BACKEND"); v != "" {
		s.Backend = v
	}
	if v := env("API_URL"); v != "" {
		s.APIURL = v
	}
	if v := env("TASK_LIST"); v != "" {
		s.TaskList = v
	}
	if v := env("USER_ID"); v != "" {
		s.UserID = v
	}
	if v := env("ORDER_STORE"); v != "" {
		s.OrderStore = v
	}
	if v := env("DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.DebounceMS = n
		}
	}
	if v := env("TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.TimeoutSeconds = n
		}
	}
	if v := env("LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		s.LogFormat = v
	}
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv("TODOSYNC_" + name))
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SettingsPath returns the path to config.toml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// OrderPath returns the path of the order store for the configured backend.
func (c *Config) OrderPath() string {
	if c.Settings.OrderStore == OrderStoreSQLite {
		return filepath.Join(c.Dir, OrderDatabase)
	}
	return filepath.Join(c.Dir, OrderFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// RemoveOrder deletes the persisted todo order of every order store backend.
// Missing files are not an error.
func (c *Config) RemoveOrder() error {
	for _, name := range []string{OrderFile, OrderDatabase} {
		if err := os.Remove(filepath.Join(c.Dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
