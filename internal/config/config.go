package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"github.com/yegors/gnss-jamming/internal/bins"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Storage  StorageConfig  `toml:"storage"`  // Per-day observation store
	Harvest  HarvestConfig  `toml:"harvest"`  // Historical snapshot download
	Maps     MapsConfig     `toml:"maps"`     // Country borders and custom polygons
	Analysis AnalysisConfig `toml:"analysis"` // Grid and bin defaults
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir   string `toml:"static_files_dir"`      // Directory to serve the dashboard from (e.g., "www")
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type           string `toml:"type"`             // Storage backend type (currently only "sqlite" is supported)
	SQLiteBasePath string `toml:"sqlite_base_path"` // Directory of the per-day database files
	FilePrefix     string `toml:"file_prefix"`      // Files are named <file_prefix>-YYYY-MM-DD.db
}

// HarvestConfig contains the historical snapshot download settings
type HarvestConfig struct {
	Enabled                 bool    `toml:"enabled"`                   // Run the scheduled harvest
	BaseURL                 string  `toml:"base_url"`                  // Archive root, day listings live at <base_url>/YYYY/MM/DD/
	SamplingIntervalMinutes float64 `toml:"sampling_interval_minutes"` // Keep snapshots whose timestamp is a multiple of this
	Schedule                string  `toml:"schedule"`                  // Cron expression of the scheduled harvest (UTC)
	LagDays                 int     `toml:"lag_days"`                  // The scheduled harvest fetches today minus lag_days
	RequestTimeoutSecs      int     `toml:"request_timeout_seconds"`   // HTTP timeout per listing or snapshot
	UserAgent               string  `toml:"user_agent"`                // User-Agent sent to the archive
}

// MapsConfig locates the region shapefiles
type MapsConfig struct {
	CountriesShapefile string `toml:"countries_shapefile"` // Natural Earth admin 0 shapefile used to tag observations
	CountryNameField   string `toml:"country_name_field"`  // Attribute holding the country name
	CustomPolygonsDir  string `toml:"custom_polygons_dir"` // Directory of <name>.shp custom regions
}

// AnalysisConfig holds the defaults offered to dashboards and the CLI
type AnalysisConfig struct {
	CellSizeDeg      float64  `toml:"cell_size_deg"`      // Grid resolution in degrees
	DefaultBinEdges  string   `toml:"default_bin_edges"`  // e.g. "0, 4, 7, 11"
	DefaultBinColors []string `toml:"default_bin_colors"` // One hex color per default bin
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate fills in defaults and validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("invalid server timeouts: must be 0 or greater")
	}

	// Set default static files directory if not specified
	if c.Server.StaticFilesDir == "" {
		c.Server.StaticFilesDir = "www"
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'console')", c.Logging.Format)
	}

	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if err := c.ValidateHarvest(); err != nil {
		return err
	}
	if err := c.ValidateAnalysis(); err != nil {
		return err
	}

	if c.Maps.CountryNameField == "" {
		c.Maps.CountryNameField = "ADMIN"
	}

	return nil
}

// ValidateStorage validates the storage configuration
func (c *Config) ValidateStorage() error {
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLiteBasePath == "" {
		c.Storage.SQLiteBasePath = "data"
	}
	if c.Storage.FilePrefix == "" {
		c.Storage.FilePrefix = "nic"
	}
	if strings.ContainsAny(c.Storage.FilePrefix, `/\`) {
		return fmt.Errorf("invalid storage file_prefix: %s (must not contain path separators)", c.Storage.FilePrefix)
	}
	return nil
}

// ValidateHarvest validates the harvest configuration
func (c *Config) ValidateHarvest() error {
	if c.Harvest.BaseURL == "" {
		c.Harvest.BaseURL = "https://samples.adsbexchange.com/readsb-hist"
	}
	if c.Harvest.SamplingIntervalMinutes == 0 {
		c.Harvest.SamplingIntervalMinutes = 5
	}
	if c.Harvest.SamplingIntervalMinutes < 0 {
		return fmt.Errorf("invalid harvest sampling_interval_minutes: %v (must be greater than 0)", c.Harvest.SamplingIntervalMinutes)
	}
	if c.Harvest.Schedule == "" {
		c.Harvest.Schedule = "0 3 * * *"
	}
	if _, err := cron.ParseStandard(c.Harvest.Schedule); err != nil {
		return fmt.Errorf("invalid harvest schedule %q: %w", c.Harvest.Schedule, err)
	}
	if c.Harvest.LagDays < 0 {
		return fmt.Errorf("invalid harvest lag_days: %d (must be 0 or greater)", c.Harvest.LagDays)
	}
	if c.Harvest.RequestTimeoutSecs == 0 {
		c.Harvest.RequestTimeoutSecs = 30
	}
	if c.Harvest.RequestTimeoutSecs < 0 {
		return fmt.Errorf("invalid harvest request_timeout_seconds: %d (must be greater than 0)", c.Harvest.RequestTimeoutSecs)
	}
	if c.Harvest.UserAgent == "" {
		c.Harvest.UserAgent = "gnss-jamming/1.0"
	}
	return nil
}

// ValidateAnalysis validates the analysis defaults
func (c *Config) ValidateAnalysis() error {
	if c.Analysis.CellSizeDeg == 0 {
		c.Analysis.CellSizeDeg = 0.25
	}
	if c.Analysis.CellSizeDeg < 0 || c.Analysis.CellSizeDeg > 90 {
		return fmt.Errorf("invalid analysis cell_size_deg: %v (must be in (0, 90])", c.Analysis.CellSizeDeg)
	}

	if c.Analysis.DefaultBinEdges == "" {
		c.Analysis.DefaultBinEdges = "0, 4, 7, 11"
		if len(c.Analysis.DefaultBinColors) == 0 {
			c.Analysis.DefaultBinColors = []string{"#d7191c", "#fdae61", "#1a9641"}
		}
	}

	edges, err := bins.ParseEdges(c.Analysis.DefaultBinEdges)
	if err != nil {
		return fmt.Errorf("invalid analysis default_bin_edges: %w", err)
	}
	colors := c.Analysis.DefaultBinColors
	if len(colors) == 0 && len(edges) > 1 {
		colors = make([]string, len(edges)-1)
	}
	if _, err := bins.New(edges, colors); err != nil {
		return fmt.Errorf("invalid analysis default bins: %w", err)
	}
	c.Analysis.DefaultBinColors = colors
	return nil
}
