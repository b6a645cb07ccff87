package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envToken   = "GWM_GATEWAY_TOKEN"
	envBaseURL = "GWM_GATEWAY_URL"
)

// Retry backoff modes.
const (
	backoffConstant    = "constant"
	backoffExponential = "exponential"
)

const (
	defaultListen     = ":8080"
	defaultWorkers    = 10
	defaultMaxRetries = 3
	defaultRetryDelay = 1 * time.Second
	defaultRatePerSec = 10
)

// GatewayConfig describes the destination gateway the migrator writes to.
type GatewayConfig struct {
	BaseURL      string  `yaml:"base_url"`
	Organization string  `yaml:"organization"`
	Environment  string  `yaml:"environment"`
	Token        string  `yaml:"token"`
	RatePerSec   float64 `yaml:"rate_per_sec"`
}

// Config holds all configuration (CLI flags + config file + environment).
type Config struct {
	Listen       string        `yaml:"listen"`
	ExportDir    string        `yaml:"export_dir"`
	SourceEnv    string        `yaml:"source_env"`
	Gateway      GatewayConfig `yaml:"gateway"`
	Workers      int           `yaml:"workers"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	RetryBackoff string        `yaml:"retry_backoff"` // "constant" or "exponential"
	RunTimeout   time.Duration `yaml:"run_timeout"`
	Deploy       bool          `yaml:"deploy_after_migration"`

	// internal: path to config file (from CLI flag)
	configFile string
}

// Parse reads CLI flags, then overlays config file and environment values.
// CLI flags take precedence over the config file; the token and base URL may
// also come from the environment (or a local .env file).
func Parse() (*Config, error) {
	c := &Config{}
	flag.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	flag.StringVar(&c.Listen, "listen", "", "HTTP listen address")
	flag.StringVar(&c.ExportDir, "export-dir", "", "Directory holding the exported source resources")
	flag.BoolVar(&c.Deploy, "deploy", false, "Deploy proxies and shared flows after migration")
	flag.Parse()

	if c.configFile != "" {
		if err := c.loadFile(c.configFile); err != nil {
			return nil, err
		}
	}

	// .env values never override a variable already set in the environment.
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(os.Getenv(envToken)); v != "" {
		c.Gateway.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(envBaseURL)); v != "" {
		c.Gateway.BaseURL = v
	}

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.ExportDir == "" {
		c.ExportDir = "data_export"
	}
	if c.SourceEnv == "" {
		c.SourceEnv = "prod"
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = backoffConstant
	}
	if c.Gateway.RatePerSec <= 0 {
		c.Gateway.RatePerSec = defaultRatePerSec
	}
}

func (c *Config) validate() error {
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway base URL is required (gateway.base_url or GWM_GATEWAY_URL)")
	}
	if c.Gateway.Organization == "" {
		return errors.New("gateway organization is required")
	}
	if c.Gateway.Environment == "" {
		return errors.New("gateway environment is required")
	}
	if c.RetryBackoff != "" && c.RetryBackoff != backoffConstant && c.RetryBackoff != backoffExponential {
		return fmt.Errorf("retry_backoff must be %q or %q, got %q", backoffConstant, backoffExponential, c.RetryBackoff)
	}
	return nil
}

// ExponentialBackoff reports whether retry delays should grow exponentially
// instead of staying constant.
func (c *Config) ExponentialBackoff() bool {
	return c.RetryBackoff == backoffExponential
}

// loadFile reads a YAML config file. Values from the file are only applied
// if the corresponding CLI flag was not explicitly set.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if c.Listen == "" && file.Listen != "" {
		c.Listen = file.Listen
	}
	if c.ExportDir == "" && file.ExportDir != "" {
		c.ExportDir = file.ExportDir
	}
	c.SourceEnv = file.SourceEnv
	if !c.Deploy {
		c.Deploy = file.Deploy
	}
	c.Gateway = file.Gateway
	c.Workers = file.Workers
	c.MaxRetries = file.MaxRetries
	c.RetryDelay = file.RetryDelay
	c.RetryBackoff = file.RetryBackoff
	c.RunTimeout = file.RunTimeout

	return nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}
