// Package config provides configuration management for the Heimdex editor.
// Values come from defaults, then an optional TOML file, then environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort                = 8787
	DefaultLogLevel            = "info"
	DefaultDataDir             = ".heimdex-editor"
	DefaultUndoWindow          = 20
	DefaultRippleMinConfidence = 0.86

	// Environment variable names
	EnvConfigFile          = "HEIMDEX_EDITOR_CONFIG"
	EnvPort                = "HEIMDEX_EDITOR_PORT"
	EnvLogLevel            = "HEIMDEX_EDITOR_LOG_LEVEL"
	EnvDataDir             = "HEIMDEX_EDITOR_DATA_DIR"
	EnvRedisURL            = "HEIMDEX_EDITOR_REDIS_URL"
	EnvUndoWindow          = "HEIMDEX_EDITOR_UNDO_WINDOW"
	EnvRippleMinConfidence = "HEIMDEX_EDITOR_RIPPLE_MIN_CONFIDENCE"
	EnvAuthToken           = "HEIMDEX_EDITOR_AUTH_TOKEN"

	// Database filename
	DBFilename = "editor.db"

	// Config file looked up in the data directory when EnvConfigFile is unset
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	RedisURL() string
	UndoWindow() int
	RippleMinConfidence() float64
	AuthToken() string
	Source() string
}

// fileConfig mirrors the TOML layout. Pointers distinguish unset keys from
// zero values.
type fileConfig struct {
	Server struct {
		Port      *int    `toml:"port"`
		AuthToken *string `toml:"auth_token"`
	} `toml:"server"`
	Logging struct {
		Level *string `toml:"level"`
	} `toml:"logging"`
	Storage struct {
		DataDir  *string `toml:"data_dir"`
		RedisURL *string `toml:"redis_url"`
	} `toml:"storage"`
	Editing struct {
		UndoWindow          *int     `toml:"undo_window"`
		RippleMinConfidence *float64 `toml:"ripple_min_confidence"`
	} `toml:"editing"`
}

// EnvConfig holds the resolved configuration
type EnvConfig struct {
	port                int
	logLevel            string
	dataDir             string
	redisURL            string
	undoWindow          int
	rippleMinConfidence float64
	authToken           string

	source string
}

// New creates a new EnvConfig with defaults, then the config file, then
// environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:                DefaultPort,
		logLevel:            DefaultLogLevel,
		dataDir:             defaultDataDir(),
		undoWindow:          DefaultUndoWindow,
		rippleMinConfidence: DefaultRippleMinConfidence,
	}

	path, explicit := os.Getenv(EnvConfigFile), true
	if path == "" {
		path, explicit = filepath.Join(cfg.dataDir, ConfigFilename), false
		if dd := os.Getenv(EnvDataDir); dd != "" {
			path = filepath.Join(dd, ConfigFilename)
		}
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile applies a TOML file. A missing file is only an error when the path
// was given explicitly.
func (c *EnvConfig) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Server.Port != nil {
		c.port = *fc.Server.Port
	}
	if fc.Server.AuthToken != nil {
		c.authToken = strings.TrimSpace(*fc.Server.AuthToken)
	}
	if fc.Logging.Level != nil {
		c.logLevel = *fc.Logging.Level
	}
	if fc.Storage.DataDir != nil {
		c.dataDir = expandHome(*fc.Storage.DataDir)
	}
	if fc.Storage.RedisURL != nil {
		c.redisURL = *fc.Storage.RedisURL
	}
	if fc.Editing.UndoWindow != nil {
		c.undoWindow = *fc.Editing.UndoWindow
	}
	if fc.Editing.RippleMinConfidence != nil {
		c.rippleMinConfidence = *fc.Editing.RippleMinConfidence
	}
	c.source = path
	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = expandHome(dd)
	}

	if ru := os.Getenv(EnvRedisURL); ru != "" {
		c.redisURL = ru
	}

	if uw := os.Getenv(EnvUndoWindow); uw != "" {
		n, err := strconv.Atoi(uw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvUndoWindow, err)
		}
		c.undoWindow = n
	}

	if mc := os.Getenv(EnvRippleMinConfidence); mc != "" {
		f, err := strconv.ParseFloat(mc, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRippleMinConfidence, err)
		}
		c.rippleMinConfidence = f
	}

	if tok := os.Getenv(EnvAuthToken); tok != "" {
		c.authToken = strings.TrimSpace(tok)
	}
	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", c.port)
	}
	switch strings.ToLower(c.logLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.logLevel)
	}
	if c.undoWindow < 1 {
		return fmt.Errorf("invalid undo window %d: must be at least 1", c.undoWindow)
	}
	if c.rippleMinConfidence < 0 || c.rippleMinConfidence > 1 {
		return fmt.Errorf("invalid ripple min confidence %v: must be within [0,1]", c.rippleMinConfidence)
	}
	if strings.TrimSpace(c.dataDir) == "" {
		return errors.New("data directory must not be empty")
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// RedisURL returns the undo store URL. Empty keeps the ledger in the
// document blob.
func (c *EnvConfig) RedisURL() string {
	return c.redisURL
}

func (c *EnvConfig) UndoWindow() int {
	return c.undoWindow
}

func (c *EnvConfig) RippleMinConfidence() float64 {
	return c.rippleMinConfidence
}

// AuthToken returns the configured API token override, if any.
func (c *EnvConfig) AuthToken() string {
	return c.authToken
}

// Source returns the config file that was applied, or "" when none was.
func (c *EnvConfig) Source() string {
	return c.source
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
