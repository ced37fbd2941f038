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

// Client variants accepted by InstagramConfig.ClientVariant.
const (
	VariantWebAuthenticated    = "web-authenticated"
	VariantWebAnonymous        = "web-anonymous"
	VariantMobileAuthenticated = "mobile-authenticated"
)

// Account store backends accepted by AccountsConfig.Store.
const (
	StoreJSON      = "json"
	StoreEncrypted = "encrypted"
	StoreKeyring   = "keyring"
	StoreSQLite    = "sqlite"
)

// Config holds all configuration options for igtail
type Config struct {
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Proxy     ProxyConfig     `yaml:"proxy" json:"proxy"`
	Accounts  AccountsConfig  `yaml:"accounts" json:"accounts"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// InstagramConfig holds remote endpoint and fetch-engine settings
type InstagramConfig struct {
	BaseURL               string        `yaml:"base_url" json:"base_url"`
	SharedDataURL         string        `yaml:"shared_data_url" json:"shared_data_url"`
	SharedDataFallbackURL string        `yaml:"shared_data_fallback_url" json:"shared_data_fallback_url"`
	AppID                 string        `yaml:"app_id" json:"app_id"`
	UserAgent             string        `yaml:"user_agent" json:"user_agent"`
	MobileUserAgent       string        `yaml:"mobile_user_agent" json:"mobile_user_agent"`
	ClientVariant         string        `yaml:"client_variant" json:"client_variant"`
	PageSize              int           `yaml:"page_size" json:"page_size"`
	MinTimestamp          int64         `yaml:"min_timestamp" json:"min_timestamp"`
	PageDelayMin          time.Duration `yaml:"page_delay_min" json:"page_delay_min"`
	PageDelayMax          time.Duration `yaml:"page_delay_max" json:"page_delay_max"`
	RateLimitCooldownMin  time.Duration `yaml:"rate_limit_cooldown_min" json:"rate_limit_cooldown_min"`
	RateLimitCooldownMax  time.Duration `yaml:"rate_limit_cooldown_max" json:"rate_limit_cooldown_max"`
}

// HTTPConfig holds per-call timeout budgets
type HTTPConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	PoolTimeout    time.Duration `yaml:"pool_timeout" json:"pool_timeout"`
	LoginTimeout   time.Duration `yaml:"login_timeout" json:"login_timeout"`
}

// ProxyConfig holds the proxy list and quarantine policy
type ProxyConfig struct {
	Addresses      []string      `yaml:"addresses" json:"addresses"`
	MaxFailures    int           `yaml:"max_failures" json:"max_failures"`
	CooldownStep   time.Duration `yaml:"cooldown_step" json:"cooldown_step"`
	MaxCooldown    time.Duration `yaml:"max_cooldown" json:"max_cooldown"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`
}

// AccountsConfig selects and configures the account store
type AccountsConfig struct {
	Store         string        `yaml:"store" json:"store"`
	Path          string        `yaml:"path" json:"path"`
	Passphrase    string        `yaml:"passphrase" json:"-"`
	CheckInterval time.Duration `yaml:"check_interval" json:"check_interval"`
	WaitTimeout   time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
}

// RateLimitConfig holds the outbound request throttle
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds the caller-side failover policy
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// OutputConfig holds result output settings
type OutputConfig struct {
	Directory   string `yaml:"directory" json:"directory"`
	Workers     int    `yaml:"workers" json:"workers"`
	Incremental bool   `yaml:"incremental" json:"incremental"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			BaseURL:               "https://www.instagram.com",
			SharedDataURL:         "https://www.instagram.com/data/shared_data/",
			SharedDataFallbackURL: "https://storage.yandexcloud.net/bit-static/instagram/shared_data.json",
			AppID:                 "936619743392459",
			UserAgent:             "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			MobileUserAgent:       "Instagram 76.0.0.15.395 Android (24/7.0; 640dpi; 1440x2560; samsung; SM-G930F; herolte; samsungexynos8890; en_US; 138226743)",
			ClientVariant:         VariantWebAuthenticated,
			PageSize:              12,
			MinTimestamp:          1744243200,
			PageDelayMin:          500 * time.Millisecond,
			PageDelayMax:          1500 * time.Millisecond,
			RateLimitCooldownMin:  1500 * time.Second,
			RateLimitCooldownMax:  1800 * time.Second,
		},
		HTTP: HTTPConfig{
			ConnectTimeout: 15 * time.Second,
			ReadTimeout:    20 * time.Second,
			WriteTimeout:   10 * time.Second,
			PoolTimeout:    5 * time.Second,
			LoginTimeout:   10 * time.Second,
		},
		Proxy: ProxyConfig{
			MaxFailures:  5,
			CooldownStep: 60 * time.Second,
			MaxCooldown:  300 * time.Second,
			PollInterval: 5 * time.Second,
		},
		Accounts: AccountsConfig{
			Store:         StoreJSON,
			Path:          "accounts.json",
			CheckInterval: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Output: OutputConfig{
			Directory: "./collected",
			Workers:   2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from IGTAIL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("IGTAIL_BASE_URL"); v != "" {
		c.Instagram.BaseURL = v
	}
	if v := os.Getenv("IGTAIL_CLIENT_VARIANT"); v != "" {
		c.Instagram.ClientVariant = v
	}
	if v := os.Getenv("IGTAIL_USER_AGENT"); v != "" {
		c.Instagram.UserAgent = v
	}
	if v := os.Getenv("IGTAIL_MIN_TIMESTAMP"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGTAIL_MIN_TIMESTAMP: %w", err))
		} else {
			c.Instagram.MinTimestamp = ts
		}
	}
	if v := os.Getenv("IGTAIL_PROXIES"); v != "" {
		c.Proxy.Addresses = splitList(v)
	}
	if v := os.Getenv("IGTAIL_ACCOUNTS_STORE"); v != "" {
		c.Accounts.Store = v
	}
	if v := os.Getenv("IGTAIL_ACCOUNTS_PATH"); v != "" {
		c.Accounts.Path = v
	}
	if v := os.Getenv("IGTAIL_PASSPHRASE"); v != "" {
		c.Accounts.Passphrase = v
	}
	if v := os.Getenv("IGTAIL_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGTAIL_REQUESTS_PER_MINUTE: %w", err))
		} else if n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("IGTAIL_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("IGTAIL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGTAIL_WORKERS: %w", err))
		} else if n > 0 {
			c.Output.Workers = n
		}
	}
	if v := os.Getenv("IGTAIL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IGTAIL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
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
		".igtail.yaml",
		".igtail.yml",
		filepath.Join(home, ".config", "igtail", "config.yaml"),
		filepath.Join(home, ".config", "igtail", "config.yml"),
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

	switch c.Instagram.ClientVariant {
	case VariantWebAuthenticated, VariantWebAnonymous, VariantMobileAuthenticated:
	default:
		errs = append(errs, fmt.Errorf("unknown client variant %q", c.Instagram.ClientVariant))
	}
	if c.Instagram.BaseURL == "" {
		errs = append(errs, errors.New("instagram base URL is required"))
	}
	if c.Instagram.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Instagram.PageDelayMax < c.Instagram.PageDelayMin {
		errs = append(errs, errors.New("page delay max must not be below min"))
	}
	if c.Instagram.RateLimitCooldownMax < c.Instagram.RateLimitCooldownMin {
		errs = append(errs, errors.New("rate limit cooldown max must not be below min"))
	}

	if c.HTTP.ConnectTimeout <= 0 || c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		errs = append(errs, errors.New("http timeouts must be positive"))
	}

	if c.Proxy.MaxFailures <= 0 {
		errs = append(errs, errors.New("proxy max failures must be positive"))
	}
	if c.Proxy.PollInterval <= 0 {
		errs = append(errs, errors.New("proxy poll interval must be positive"))
	}

	switch c.Accounts.Store {
	case StoreJSON, StoreEncrypted, StoreSQLite:
		if c.Accounts.Path == "" {
			errs = append(errs, fmt.Errorf("accounts path is required for the %s store", c.Accounts.Store))
		}
	case StoreKeyring:
	default:
		errs = append(errs, fmt.Errorf("unknown accounts store %q", c.Accounts.Store))
	}
	if c.Accounts.CheckInterval <= 0 {
		errs = append(errs, errors.New("account check interval must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
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
	if v, ok := flags["proxies"].([]string); ok && len(v) > 0 {
		c.Proxy.Addresses = v
	}
	if v, ok := flags["accounts"].(string); ok && v != "" {
		c.Accounts.Path = v
	}
	if v, ok := flags["store"].(string); ok && v != "" {
		c.Accounts.Store = v
	}
	if v, ok := flags["variant"].(string); ok && v != "" {
		c.Instagram.ClientVariant = v
	}
	if v, ok := flags["min-timestamp"].(int64); ok && v > 0 {
		c.Instagram.MinTimestamp = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Output.Workers = v
	}
	if v, ok := flags["incremental"].(bool); ok && v {
		c.Output.Incremental = true
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igtail.env"))

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
