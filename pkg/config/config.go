package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "REDDITDL_"

// Config holds all configuration options for the downloader
type Config struct {
	// Upstream API settings
	Reddit RedditConfig `yaml:"reddit" json:"reddit"`

	// Global request cadence
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Worker and per-job settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Listing filter policy
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// List ordering
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Retry policy layered around page fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RedditConfig holds upstream API settings
type RedditConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	PageSize       int           `yaml:"page_size" json:"page_size"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" json:"max_body_bytes"`

	// Headers are extra request headers, e.g. Accept-Language
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// RateLimitConfig holds the shared request interval
type RateLimitConfig struct {
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
	Floor       time.Duration `yaml:"floor" json:"floor"`
}

// DownloadConfig holds worker pool and per-job configuration
type DownloadConfig struct {
	Workers        int           `yaml:"workers" json:"workers"`
	WorkerStagger  time.Duration `yaml:"worker_stagger" json:"worker_stagger"`
	QueueWait      time.Duration `yaml:"queue_wait" json:"queue_wait"`
	ListingLimit   int           `yaml:"listing_limit" json:"listing_limit"`
	MaxDownloads   int           `yaml:"max_downloads" json:"max_downloads"`
	StopOnExisting bool          `yaml:"stop_on_existing" json:"stop_on_existing"`
	StartCursor    string        `yaml:"start_cursor" json:"start_cursor"`
}

// FilterConfig holds listing filter criteria
type FilterConfig struct {
	MinScore     int    `yaml:"min_score" json:"min_score"`
	SFWOnly      bool   `yaml:"sfw_only" json:"sfw_only"`
	NSFWOnly     bool   `yaml:"nsfw_only" json:"nsfw_only"`
	TitlePattern string `yaml:"title_pattern" json:"title_pattern"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	PerSubjectFolders bool   `yaml:"per_subject_folders" json:"per_subject_folders"`
	ListExtension     string `yaml:"list_extension" json:"list_extension"`
	Recursive         bool   `yaml:"recursive" json:"recursive"`
	MaxFilenameLength int    `yaml:"max_filename_length" json:"max_filename_length"`
}

// ScheduleConfig holds the shuffle policy string, e.g. "subjects,lists" or "all"
type ScheduleConfig struct {
	Shuffle string `yaml:"shuffle" json:"shuffle"`
}

// RetryConfig holds retry configuration for page fetches
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MetricsConfig holds the prometheus listener address; empty disables it
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Reddit: RedditConfig{
			BaseURL:        "https://www.reddit.com",
			UserAgent:      "redditdl/1.0 (listing image downloader)",
			PageSize:       25,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   64 << 20,
		},
		RateLimit: RateLimitConfig{
			MinInterval: 2 * time.Second,
			Floor:       2 * time.Second,
		},
		Download: DownloadConfig{
			Workers:       4,
			WorkerStagger: 250 * time.Millisecond,
			QueueWait:     time.Second,
		},
		Output: OutputConfig{
			BaseDirectory:     ".",
			PerSubjectFolders: true,
			ListExtension:     ".list",
			MaxFilenameLength: 255,
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "BASE_URL"); v != "" {
		c.Reddit.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Reddit.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv(envPrefix + "SHUFFLE"); v != "" {
		c.Schedule.Shuffle = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv(envPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWORKERS: %w", envPrefix, err))
		} else {
			c.Download.Workers = n
		}
	}
	if v := os.Getenv(envPrefix + "MIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMIN_INTERVAL: %w", envPrefix, err))
		} else {
			c.RateLimit.MinInterval = d
		}
	}
	if v := os.Getenv(envPrefix + "REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err))
		} else {
			c.Reddit.RequestTimeout = d
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".redditdl.yaml",
		".redditdl.yml",
		filepath.Join(home, ".config", "redditdl", "config.yaml"),
		filepath.Join(home, ".config", "redditdl", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Reddit.BaseURL == "" {
		errs = append(errs, errors.New("reddit base URL is required"))
	}
	if c.Reddit.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.Reddit.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Reddit.PageSize < 0 {
		errs = append(errs, errors.New("page size cannot be negative"))
	}

	if c.RateLimit.MinInterval < 0 || c.RateLimit.Floor < 0 {
		errs = append(errs, errors.New("rate limit intervals cannot be negative"))
	}

	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Download.QueueWait <= 0 {
		errs = append(errs, errors.New("queue wait must be positive"))
	}
	if c.Download.WorkerStagger < 0 {
		errs = append(errs, errors.New("worker stagger cannot be negative"))
	}
	if c.Download.ListingLimit < 0 || c.Download.MaxDownloads < 0 {
		errs = append(errs, errors.New("listing limit and max downloads cannot be negative"))
	}

	if c.Filter.TitlePattern != "" {
		if _, err := regexp.Compile(c.Filter.TitlePattern); err != nil {
			errs = append(errs, fmt.Errorf("invalid title pattern: %w", err))
		}
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	} else if info, err := os.Stat(c.Output.BaseDirectory); err == nil && !info.IsDir() {
		errs = append(errs, fmt.Errorf("output path %s is not a directory", c.Output.BaseDirectory))
	}
	if !strings.HasPrefix(c.Output.ListExtension, ".") || len(c.Output.ListExtension) < 2 {
		errs = append(errs, errors.New("list extension must start with a dot"))
	}
	if c.Output.MaxFilenameLength < 16 {
		errs = append(errs, errors.New("max filename length must be at least 16"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["dest"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["recursive"].(bool); ok {
		c.Output.Recursive = v
	}
	if v, ok := flags["ext"].(string); ok && v != "" {
		c.Output.ListExtension = v
	}
	if v, ok := flags["shuffle"].(string); ok {
		c.Schedule.Shuffle = v
	}
	if v, ok := flags["workers"].(int); ok {
		c.Download.Workers = v
	}
	if v, ok := flags["score"].(int); ok {
		c.Filter.MinScore = v
	}
	if v, ok := flags["sfw"].(bool); ok {
		c.Filter.SFWOnly = v
	}
	if v, ok := flags["nsfw"].(bool); ok {
		c.Filter.NSFWOnly = v
	}
	if v, ok := flags["regex"].(string); ok {
		c.Filter.TitlePattern = v
	}
	if v, ok := flags["limit"].(int); ok {
		c.Download.ListingLimit = v
	}
	if v, ok := flags["num"].(int); ok {
		c.Download.MaxDownloads = v
	}
	if v, ok := flags["update"].(bool); ok {
		c.Download.StopOnExisting = v
	}
	if v, ok := flags["last"].(string); ok {
		c.Download.StartCursor = v
	}
	if v, ok := flags["interval"].(time.Duration); ok {
		c.RateLimit.MinInterval = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".redditdl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
