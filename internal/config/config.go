// Package config provides configuration management for the mediabatch agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort       = 8788
	DefaultLogLevel   = "info"
	DefaultDataDir    = ".mediabatch"
	DefaultBackendURL = "http://localhost:5001"

	// Environment variable names
	EnvPort       = "MEDIABATCH_PORT"
	EnvLogLevel   = "MEDIABATCH_LOG_LEVEL"
	EnvDataDir    = "MEDIABATCH_DATA_DIR"
	EnvBackendURL = "MEDIABATCH_BACKEND_URL"
	EnvFeatures   = "MEDIABATCH_FEATURES"
	EnvHeadless   = "MEDIABATCH_HEADLESS"
	EnvPlatform   = "MEDIABATCH_PLATFORM"

	// Database filename
	DBFilename = "mediabatch.db"

	// Feature sets. The legacy set only exposes the batch creator.
	FeatureSetAll    = "all"
	FeatureSetLegacy = "batch"

	// Status polling cadence against the backend.
	DefaultPollInterval = 2000 * time.Millisecond

	DefaultRequestTimeout = 60 * time.Second
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	DownloadDir() string
	BackendURL() string
	FeatureSet() string
	Headless() bool
	Platform() string
	PollInterval() time.Duration
	RequestTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	backendURL string
	featureSet string
	headless   bool
	platform   string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:       DefaultPort,
		logLevel:   DefaultLogLevel,
		dataDir:    defaultDataDir(),
		backendURL: DefaultBackendURL,
		featureSet: FeatureSetAll,
		platform:   runtime.GOOS,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if bu := os.Getenv(EnvBackendURL); bu != "" {
		if !strings.HasPrefix(bu, "http://") && !strings.HasPrefix(bu, "https://") {
			return nil, fmt.Errorf("invalid %s: must be an http(s) origin", EnvBackendURL)
		}
		cfg.backendURL = strings.TrimRight(bu, "/")
	}

	if fs := os.Getenv(EnvFeatures); fs != "" {
		switch strings.ToLower(fs) {
		case FeatureSetAll, FeatureSetLegacy:
			cfg.featureSet = strings.ToLower(fs)
		default:
			return nil, fmt.Errorf("invalid %s: must be %q or %q", EnvFeatures, FeatureSetAll, FeatureSetLegacy)
		}
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if pl := os.Getenv(EnvPlatform); pl != "" {
		cfg.platform = strings.ToLower(pl)
	}

	return cfg, nil
}

// Port returns the local control server port
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

// DownloadDir returns where fetched job outputs are written
func (c *EnvConfig) DownloadDir() string {
	return filepath.Join(c.dataDir, "downloads")
}

// BackendURL returns the origin of the media processing backend
func (c *EnvConfig) BackendURL() string {
	return c.backendURL
}

func (c *EnvConfig) FeatureSet() string {
	return c.featureSet
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// Platform returns the OS name used for folder path guesses (darwin, windows, linux)
func (c *EnvConfig) Platform() string {
	return c.platform
}

func (c *EnvConfig) PollInterval() time.Duration {
	return DefaultPollInterval
}

func (c *EnvConfig) RequestTimeout() time.Duration {
	return DefaultRequestTimeout
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

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
