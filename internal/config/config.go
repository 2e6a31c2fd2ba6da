// Package config provides configuration management for the Heimdex Exporter.
// Configuration is loaded from an optional TOML file and environment
// variables, layered over sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// Default values
	DefaultPort          = 8788
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".heimdex"
	DefaultExportBaseURL = "http://127.0.0.1:7263"
	DefaultDownloadDir   = "Downloads"

	// Environment variable names
	EnvConfigFile     = "HEIMDEX_CONFIG_FILE"
	EnvPort           = "HEIMDEX_PORT"
	EnvLogLevel       = "HEIMDEX_LOG_LEVEL"
	EnvDataDir        = "HEIMDEX_DATA_DIR"
	EnvHeadless       = "HEIMDEX_HEADLESS"
	EnvExportBaseURL  = "HEIMDEX_EXPORT_BASE_URL"
	EnvExportTimeout  = "HEIMDEX_EXPORT_TIMEOUT"
	EnvExportMaxBytes = "HEIMDEX_EXPORT_MAX_BYTES"
	EnvDownloadDir    = "HEIMDEX_DOWNLOAD_DIR"
	EnvSessionFile    = "HEIMDEX_SESSION_FILE"
	EnvLogFile        = "HEIMDEX_LOG_FILE"

	// Database filename
	DBFilename = "exporter.db"

	// SessionFilename is written by the annotation editor with the id of
	// the session currently open.
	SessionFilename = "active_session"

	// LogFilename lives under <data_dir>/logs. LogFileOff disables file logging.
	LogFilename = "exporter.log"
	LogFileOff  = "off"

	// Archive limits
	DefaultExportMaxBytes = 2 * 1024 * 1024 * 1024 // 2GB
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	Headless() bool
	ExportBaseURL() string
	ExportTimeout() time.Duration
	ExportMaxBytes() int64
	DownloadDir() string
	SessionFile() string
	LogFile() string
}

// fileConfig mirrors the keys accepted in the TOML config file.
type fileConfig struct {
	Port           int    `toml:"port"`
	LogLevel       string `toml:"log_level"`
	DataDir        string `toml:"data_dir"`
	Headless       bool   `toml:"headless"`
	ExportBaseURL  string `toml:"export_base_url"`
	ExportTimeoutS int    `toml:"export_timeout_s"`
	ExportMaxBytes int64  `toml:"export_max_bytes"`
	DownloadDir    string `toml:"download_dir"`
	SessionFile    string `toml:"session_file"`
	LogFile        string `toml:"log_file"`
}

// EnvConfig reads configuration from a TOML file and environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	exportBaseURL  string
	exportTimeout  time.Duration
	exportMaxBytes int64
	downloadDir    string
	sessionFile    string
	logFile        string
}

// New creates a new EnvConfig with defaults, file values and environment
// variable overrides, in that order of precedence.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		exportBaseURL:  DefaultExportBaseURL,
		exportMaxBytes: DefaultExportMaxBytes,
		downloadDir:    defaultDownloadDir(),
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	c.headless = fc.Headless
	if fc.ExportBaseURL != "" {
		c.exportBaseURL = fc.ExportBaseURL
	}
	if fc.ExportTimeoutS > 0 {
		c.exportTimeout = time.Duration(fc.ExportTimeoutS) * time.Second
	}
	if fc.ExportMaxBytes > 0 {
		c.exportMaxBytes = fc.ExportMaxBytes
	}
	if fc.DownloadDir != "" {
		c.downloadDir = fc.DownloadDir
	}
	if fc.SessionFile != "" {
		c.sessionFile = fc.SessionFile
	}
	if fc.LogFile != "" {
		c.logFile = fc.LogFile
	}
	return nil
}

func (c *EnvConfig) applyEnv() error {
	// Override port from environment
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
		c.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = headless
	}

	if u := os.Getenv(EnvExportBaseURL); u != "" {
		c.exportBaseURL = u
	}

	if t := os.Getenv(EnvExportTimeout); t != "" {
		secs, err := strconv.Atoi(t)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvExportTimeout, err)
		}
		if secs < 0 {
			return fmt.Errorf("invalid %s: must not be negative", EnvExportTimeout)
		}
		c.exportTimeout = time.Duration(secs) * time.Second
	}

	if mb := os.Getenv(EnvExportMaxBytes); mb != "" {
		n, err := strconv.ParseInt(mb, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvExportMaxBytes, err)
		}
		c.exportMaxBytes = n
	}

	if dl := os.Getenv(EnvDownloadDir); dl != "" {
		c.downloadDir = dl
	}

	if sf := os.Getenv(EnvSessionFile); sf != "" {
		c.sessionFile = sf
	}

	if lf := os.Getenv(EnvLogFile); lf != "" {
		c.logFile = lf
	}

	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	if c.exportMaxBytes <= 0 {
		return fmt.Errorf("invalid export max bytes %d: must be positive", c.exportMaxBytes)
	}
	if !strings.HasPrefix(c.exportBaseURL, "http://") && !strings.HasPrefix(c.exportBaseURL, "https://") {
		return fmt.Errorf("invalid export base url %q: must be http or https", c.exportBaseURL)
	}
	c.exportBaseURL = strings.TrimRight(c.exportBaseURL, "/")
	return nil
}

// Port returns the local API port
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

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// ExportBaseURL returns the base URL of the backend serving /export_session
func (c *EnvConfig) ExportBaseURL() string {
	return c.exportBaseURL
}

// ExportTimeout returns the HTTP timeout for one export request; zero means none
func (c *EnvConfig) ExportTimeout() time.Duration {
	return c.exportTimeout
}

func (c *EnvConfig) ExportMaxBytes() int64 {
	return c.exportMaxBytes
}

// DownloadDir returns the directory archives are saved into
func (c *EnvConfig) DownloadDir() string {
	return c.downloadDir
}

// SessionFile returns the path of the editor's active session file
func (c *EnvConfig) SessionFile() string {
	if c.sessionFile != "" {
		return c.sessionFile
	}
	return filepath.Join(c.dataDir, SessionFilename)
}

// LogFile returns the rotated log file path, or "" when file logging is off
func (c *EnvConfig) LogFile() string {
	switch strings.ToLower(c.logFile) {
	case LogFileOff:
		return ""
	case "":
		return filepath.Join(c.dataDir, "logs", LogFilename)
	default:
		return c.logFile
	}
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

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, DefaultDownloadDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
