// Package config loads tunebook settings from defaults, YAML files, a .env
// file and TUNEBOOK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tunebook/tunebook/internal/daemon"
	"github.com/tunebook/tunebook/internal/engine"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/store"
	"github.com/tunebook/tunebook/pkg/version"
)

// ProjectConfigName is the per-directory config file.
const ProjectConfigName = ".tunebook.yaml"

// Config represents the complete tunebook configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Data    DataConfig   `yaml:"data" json:"data"`
	Fetch   FetchConfig  `yaml:"fetch" json:"fetch"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Server  ServerConfig `yaml:"server" json:"server"`
}

// DataConfig locates the catalog and its default sources.
type DataConfig struct {
	// Dir holds the database. Empty keeps the catalog in memory.
	Dir    string `yaml:"dir" json:"dir"`
	DBName string `yaml:"db_name" json:"db_name"`

	// Sources are ingested when `tunebook ingest` is run without arguments
	// and watched by `tunebook serve --watch`.
	Sources []string `yaml:"sources" json:"sources"`

	// Concurrency bounds parallel source fetches.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// FetchConfig tunes remote source fetching.
type FetchConfig struct {
	Timeout           string  `yaml:"timeout" json:"timeout"`
	UserAgent         string  `yaml:"user_agent" json:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
	MaxBytes          int64   `yaml:"max_bytes" json:"max_bytes"`
}

// SearchConfig tunes fuzzy matching and caching.
type SearchConfig struct {
	Threshold      float64 `yaml:"threshold" json:"threshold"`
	MinTokenLength int     `yaml:"min_token_length" json:"min_token_length"`
	MaxEdits       int     `yaml:"max_edits" json:"max_edits"`
	CacheSize      int     `yaml:"cache_size" json:"cache_size"`
	DefaultLimit   int     `yaml:"default_limit" json:"default_limit"`
}

// ServerConfig configures the daemon.
type ServerConfig struct {
	SocketPath    string `yaml:"socket_path" json:"socket_path"`
	PIDPath       string `yaml:"pid_path" json:"pid_path"`
	Timeout       string `yaml:"timeout" json:"timeout"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	fuzzy := store.DefaultFuzzyConfig()
	d := daemon.DefaultConfig()

	return &Config{
		Version: 1,
		Data: DataConfig{
			Dir:         defaultDataDir(),
			DBName:      engine.DefaultDBName,
			Sources:     []string{},
			Concurrency: min(runtime.NumCPU(), ingest.DefaultConcurrency),
		},
		Fetch: FetchConfig{
			Timeout:           "60s",
			UserAgent:         "tunebook/" + version.Version,
			RequestsPerSecond: 4,
			Burst:             4,
			MaxBytes:          512 << 20,
		},
		Search: SearchConfig{
			Threshold:      fuzzy.Threshold,
			MinTokenLength: fuzzy.MinTokenLength,
			MaxEdits:       fuzzy.MaxEdits,
			CacheSize:      256,
			DefaultLimit:   50,
		},
		Server: ServerConfig{
			SocketPath:    d.SocketPath,
			PIDPath:       d.PIDPath,
			Timeout:       d.Timeout.String(),
			LogLevel:      "info",
			WatchDebounce: "500ms",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".tunebook", "data")
	}
	return filepath.Join(home, ".tunebook", "data")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/tunebook/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/tunebook/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tunebook", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "tunebook", "config.yaml")
	}
	return filepath.Join(home, ".config", "tunebook", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user configuration file over the defaults.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the configuration for dir in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/tunebook/config.yaml)
//  3. Project config (.tunebook.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (TUNEBOOK_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	path := GetUserConfigPath()
	if fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, tberrors.ConfigError(fmt.Sprintf("failed to load %s", envPath), err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads .tunebook.yaml, or .tunebook.yml as a fallback.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".tunebook.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML merges the non-zero values of a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return tberrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return tberrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithSuggestion("Check the YAML syntax and field types")
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	setString(&c.Data.Dir, other.Data.Dir)
	setString(&c.Data.DBName, other.Data.DBName)
	if len(other.Data.Sources) > 0 {
		c.Data.Sources = other.Data.Sources
	}
	setInt(&c.Data.Concurrency, other.Data.Concurrency)

	setString(&c.Fetch.Timeout, other.Fetch.Timeout)
	setString(&c.Fetch.UserAgent, other.Fetch.UserAgent)
	if other.Fetch.RequestsPerSecond != 0 {
		c.Fetch.RequestsPerSecond = other.Fetch.RequestsPerSecond
	}
	setInt(&c.Fetch.Burst, other.Fetch.Burst)
	if other.Fetch.MaxBytes != 0 {
		c.Fetch.MaxBytes = other.Fetch.MaxBytes
	}

	if other.Search.Threshold != 0 {
		c.Search.Threshold = other.Search.Threshold
	}
	setInt(&c.Search.MinTokenLength, other.Search.MinTokenLength)
	setInt(&c.Search.MaxEdits, other.Search.MaxEdits)
	setInt(&c.Search.CacheSize, other.Search.CacheSize)
	setInt(&c.Search.DefaultLimit, other.Search.DefaultLimit)

	setString(&c.Server.SocketPath, other.Server.SocketPath)
	setString(&c.Server.PIDPath, other.Server.PIDPath)
	setString(&c.Server.Timeout, other.Server.Timeout)
	setString(&c.Server.LogLevel, other.Server.LogLevel)
	setString(&c.Server.MetricsAddr, other.Server.MetricsAddr)
	setString(&c.Server.WatchDebounce, other.Server.WatchDebounce)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies TUNEBOOK_* variables. Empty values are ignored.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"TUNEBOOK_DATA_DIR":       &c.Data.Dir,
		"TUNEBOOK_DB_NAME":        &c.Data.DBName,
		"TUNEBOOK_FETCH_TIMEOUT":  &c.Fetch.Timeout,
		"TUNEBOOK_USER_AGENT":     &c.Fetch.UserAgent,
		"TUNEBOOK_SOCKET":         &c.Server.SocketPath,
		"TUNEBOOK_LOG_LEVEL":      &c.Server.LogLevel,
		"TUNEBOOK_METRICS_ADDR":   &c.Server.MetricsAddr,
		"TUNEBOOK_WATCH_DEBOUNCE": &c.Server.WatchDebounce,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("TUNEBOOK_SOURCES"); v != "" {
		var sources []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sources = append(sources, s)
			}
		}
		c.Data.Sources = sources
	}

	if v := os.Getenv("TUNEBOOK_IN_MEMORY"); v != "" {
		inMemory, err := strconv.ParseBool(v)
		if err != nil {
			return envError("TUNEBOOK_IN_MEMORY", v, err)
		}
		if inMemory {
			c.Data.Dir = ""
		}
	}

	ints := map[string]*int{
		"TUNEBOOK_CONCURRENCY":  &c.Data.Concurrency,
		"TUNEBOOK_CACHE_SIZE":   &c.Search.CacheSize,
		"TUNEBOOK_SEARCH_LIMIT": &c.Search.DefaultLimit,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return envError(key, v, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("TUNEBOOK_FUZZY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("TUNEBOOK_FUZZY_THRESHOLD", v, err)
		}
		c.Search.Threshold = f
	}
	return nil
}

func envError(key, value string, err error) error {
	return tberrors.ConfigError(fmt.Sprintf("invalid %s=%q", key, value), err)
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	if c.Search.Threshold <= 0 || c.Search.Threshold > 1 {
		return invalid("search.threshold must be in (0, 1], got %g", c.Search.Threshold)
	}
	if c.Search.MinTokenLength < 1 {
		return invalid("search.min_token_length must be positive, got %d", c.Search.MinTokenLength)
	}
	if c.Search.MaxEdits < 0 || c.Search.MaxEdits > 2 {
		return invalid("search.max_edits must be between 0 and 2, got %d", c.Search.MaxEdits)
	}
	if c.Search.CacheSize < 0 {
		return invalid("search.cache_size must be non-negative, got %d", c.Search.CacheSize)
	}
	if c.Search.DefaultLimit < 0 {
		return invalid("search.default_limit must be non-negative, got %d", c.Search.DefaultLimit)
	}
	if c.Data.Concurrency < 1 {
		return invalid("data.concurrency must be positive, got %d", c.Data.Concurrency)
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return invalid("fetch.requests_per_second must be non-negative, got %g", c.Fetch.RequestsPerSecond)
	}
	if c.Fetch.MaxBytes < 0 {
		return invalid("fetch.max_bytes must be non-negative, got %d", c.Fetch.MaxBytes)
	}
	for field, v := range map[string]string{
		"fetch.timeout":         c.Fetch.Timeout,
		"server.timeout":        c.Server.Timeout,
		"server.watch_debounce": c.Server.WatchDebounce,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return invalid("%s must be a positive duration, got %q", field, v)
		}
	}

	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return tberrors.ConfigError(fmt.Sprintf(format, args...), nil)
}

// FetchTimeout returns the parsed fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return mustDuration(c.Fetch.Timeout, time.Minute)
}

// WatchDebounce returns the parsed watch debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	return mustDuration(c.Server.WatchDebounce, 500*time.Millisecond)
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// EngineConfig maps the settings onto an engine configuration.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		DataDir: c.Data.Dir,
		DBName:  c.Data.DBName,
		Fuzzy: store.FuzzyConfig{
			Threshold:      c.Search.Threshold,
			MinTokenLength: c.Search.MinTokenLength,
			MaxEdits:       c.Search.MaxEdits,
		},
		CacheSize: c.Search.CacheSize,
		Fetch: ingest.FetchConfig{
			Timeout:           c.FetchTimeout(),
			UserAgent:         c.Fetch.UserAgent,
			RequestsPerSecond: c.Fetch.RequestsPerSecond,
			Burst:             c.Fetch.Burst,
			MaxBytes:          c.Fetch.MaxBytes,
		},
		Concurrency: c.Data.Concurrency,
	}
}

// DaemonConfig maps the settings onto a daemon configuration.
func (c *Config) DaemonConfig() daemon.Config {
	d := daemon.DefaultConfig()
	d.SocketPath = c.Server.SocketPath
	d.PIDPath = c.Server.PIDPath
	d.Timeout = mustDuration(c.Server.Timeout, d.Timeout)
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return tberrors.ConfigError("failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return tberrors.ConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return tberrors.ConfigError("failed to write config file", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
