package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the API client
type Config struct {
	// Remote service location
	API APIConfig `yaml:"api" json:"api"`

	// Attempt loop settings
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Liveness probe settings
	Health HealthConfig `yaml:"health" json:"health"`

	// Batch runner settings
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds the inputs to base endpoint resolution
type APIConfig struct {
	// BaseURL is an explicit override and wins over everything else
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Origin is the URL the front end is served from, if any
	Origin string `yaml:"origin" json:"origin"`
	// FrontendToken is the hostname fragment identifying the front end
	FrontendToken string `yaml:"frontend_token" json:"frontend_token"`
	// BackendToken replaces FrontendToken to get the paired back end host
	BackendToken string `yaml:"backend_token" json:"backend_token"`
	// LocalDefault is used when nothing else applies
	LocalDefault string `yaml:"local_default" json:"local_default"`
}

// RetryConfig holds retry and backoff configuration
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
	Strategy   string        `yaml:"strategy" json:"strategy"`
	// RequestTimeout bounds each attempt; zero leaves attempts unbounded
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// HealthConfig holds liveness probe configuration
type HealthConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Path    string        `yaml:"path" json:"path"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// BatchConfig holds batch runner configuration
type BatchConfig struct {
	Concurrency       int    `yaml:"concurrency" json:"concurrency"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int    `yaml:"burst_size" json:"burst_size"`
	OutputDir         string `yaml:"output_dir" json:"output_dir"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	// File receives the text exposition after each command
	File string `yaml:"file" json:"file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			FrontendToken: "frontend",
			BackendToken:  "backend",
			LocalDefault:  DefaultLocalEndpoint,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
			Strategy:   "linear",
		},
		Health: HealthConfig{
			Enabled: true,
			Path:    "/api/health",
			Timeout: 5 * time.Second,
		},
		Batch: BatchConfig{
			Concurrency:       3,
			RequestsPerMinute: 60,
			BurstSize:         10,
			OutputDir:         "./responses",
		},
		Metrics: MetricsConfig{
			Namespace: "apiclient",
			File:      "apiclient.prom",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from APICLIENT_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("APICLIENT_BASE_URL", &c.API.BaseURL)
	setString("APICLIENT_ORIGIN", &c.API.Origin)
	setString("APICLIENT_FRONTEND_TOKEN", &c.API.FrontendToken)
	setString("APICLIENT_BACKEND_TOKEN", &c.API.BackendToken)

	setInt("APICLIENT_MAX_RETRIES", &c.Retry.MaxRetries)
	setDuration("APICLIENT_BASE_DELAY", &c.Retry.BaseDelay)
	setDuration("APICLIENT_REQUEST_TIMEOUT", &c.Retry.RequestTimeout)
	setString("APICLIENT_RETRY_STRATEGY", &c.Retry.Strategy)

	if v := os.Getenv("APICLIENT_HEALTH_ENABLED"); v != "" {
		c.Health.Enabled = strings.ToLower(v) == "true"
	}
	setDuration("APICLIENT_HEALTH_TIMEOUT", &c.Health.Timeout)

	setInt("APICLIENT_CONCURRENCY", &c.Batch.Concurrency)
	setInt("APICLIENT_REQUESTS_PER_MINUTE", &c.Batch.RequestsPerMinute)
	setString("APICLIENT_OUTPUT_DIR", &c.Batch.OutputDir)

	if v := os.Getenv("APICLIENT_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true"
	}
	setString("APICLIENT_METRICS_FILE", &c.Metrics.File)

	setString("APICLIENT_LOG_LEVEL", &c.Logging.Level)
	setString("APICLIENT_LOG_FORMAT", &c.Logging.Format)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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
		".apiclient.yaml",
		".apiclient.yml",
		filepath.Join(home, ".config", "apiclient", "config.yaml"),
		filepath.Join(home, ".apiclient.yaml"),
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

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("base delay cannot be negative"))
	}
	if c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("max delay cannot be negative"))
	}
	if c.Retry.RequestTimeout < 0 {
		errs = append(errs, errors.New("request timeout cannot be negative"))
	}
	switch strings.ToLower(c.Retry.Strategy) {
	case "", "linear", "exponential":
	default:
		errs = append(errs, fmt.Errorf("invalid retry strategy %q", c.Retry.Strategy))
	}

	if c.Health.Enabled {
		if !strings.HasPrefix(c.Health.Path, "/") {
			errs = append(errs, errors.New("health path must start with /"))
		}
		if c.Health.Timeout <= 0 {
			errs = append(errs, errors.New("health timeout must be positive"))
		}
	}

	if c.Batch.Concurrency <= 0 {
		errs = append(errs, errors.New("batch concurrency must be positive"))
	}
	if c.Batch.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Batch.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Metrics.Enabled && c.Metrics.File == "" {
		errs = append(errs, errors.New("metrics file is required when metrics are enabled"))
	}

	if c.API.BaseURL != "" {
		if err := validateURL(c.API.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("base url: %w", err))
		}
	}
	if c.API.Origin != "" {
		if err := validateURL(c.API.Origin); err != nil {
			errs = append(errs, fmt.Errorf("origin: %w", err))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if origin, ok := flags["origin"].(string); ok && origin != "" {
		c.API.Origin = origin
	}
	if retries, ok := flags["retries"].(int); ok && retries >= 0 {
		c.Retry.MaxRetries = retries
	}
	if delay, ok := flags["base-delay"].(time.Duration); ok && delay > 0 {
		c.Retry.BaseDelay = delay
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Retry.RequestTimeout = timeout
	}
	if concurrent, ok := flags["concurrency"].(int); ok && concurrent > 0 {
		c.Batch.Concurrency = concurrent
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Batch.OutputDir = output
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".apiclient.env"))

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
