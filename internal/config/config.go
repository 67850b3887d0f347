// File: internal/config/config.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Injector  InjectorConfig  `mapstructure:"injector" yaml:"injector"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Readiness ReadinessConfig `mapstructure:"readiness" yaml:"readiness"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// InjectorConfig carries the values the watcher injection needs: where the
// emoticon assets live, which debugging port to talk to, how long to wait for
// the evaluate response, and which page URLs count as chat targets.
type InjectorConfig struct {
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
	DebugPort    string `mapstructure:"debug_port" yaml:"debug_port"`
	TimeoutSec   int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	TargetPrefix string `mapstructure:"target_prefix" yaml:"target_prefix"`
}

// EvalTimeout converts TimeoutSec into a duration.
func (i InjectorConfig) EvalTimeout() time.Duration {
	return time.Duration(i.TimeoutSec) * time.Second
}

// DiscoveryConfig tunes the HTTP side of target discovery.
type DiscoveryConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ReadinessConfig bounds the polling done by the await command before the
// first injection pass.
type ReadinessConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
}

// legacyKeys maps the flat keys of the legacy config.json onto their
// structured equivalents.
var legacyKeys = map[string]string{
	"baseurl":      "injector.base_url",
	"debugport":    "injector.debug_port",
	"timeoutsec":   "injector.timeout_sec",
	"targetprefix": "injector.target_prefix",
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "dccon-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Injector --
	v.SetDefault("injector.base_url", "")
	v.SetDefault("injector.debug_port", "9222")
	v.SetDefault("injector.timeout_sec", 5)
	v.SetDefault("injector.target_prefix", "")

	// -- Discovery --
	v.SetDefault("discovery.host", "localhost")
	v.SetDefault("discovery.request_timeout", "10s")

	// -- Readiness --
	v.SetDefault("readiness.max_attempts", 5)
	v.SetDefault("readiness.interval", "3s")
	v.SetDefault("readiness.initial_delay", "100ms")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Older launchers shipped a flat config.json; honour it when the
	// structured key is not present in the same file.
	for legacy, key := range legacyKeys {
		if v.InConfig(legacy) && !v.InConfig(key) {
			v.SetDefault(key, v.Get(legacy))
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.sanitize()

	if cfg.Logger.LogFile != "" {
		expanded, err := homedir.Expand(cfg.Logger.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to expand log file path: %w", err)
		}
		cfg.Logger.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// EnvKeyReplacer maps nested keys onto environment variable names, so
// injector.debug_port is read from DCCON_INJECTOR_DEBUG_PORT.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// CleanValue strips every single and double quote and trims surrounding
// whitespace. Values copied out of CSS custom properties arrive quoted.
func CleanValue(s string) string {
	return strings.TrimSpace(strings.NewReplacer(`'`, "", `"`, "").Replace(s))
}

func (c *Config) sanitize() {
	c.Injector.BaseURL = CleanValue(c.Injector.BaseURL)
	c.Injector.DebugPort = CleanValue(c.Injector.DebugPort)
	c.Injector.TargetPrefix = CleanValue(c.Injector.TargetPrefix)
	c.Discovery.Host = CleanValue(c.Discovery.Host)
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Injector.Validate(); err != nil {
		return fmt.Errorf("injector configuration invalid: %w", err)
	}
	if c.Discovery.Host == "" {
		return fmt.Errorf("discovery.host must not be empty")
	}
	if c.Discovery.RequestTimeout <= 0 {
		return fmt.Errorf("discovery.request_timeout must be a positive duration")
	}
	if err := c.Readiness.Validate(); err != nil {
		return fmt.Errorf("readiness configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the injector settings. BaseURL and TargetPrefix may be
// empty: an empty prefix matches every target.
func (i *InjectorConfig) Validate() error {
	port, err := strconv.Atoi(i.DebugPort)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("debug_port must be a port number between 1 and 65535, got %q", i.DebugPort)
	}
	if i.TimeoutSec <= 0 {
		return fmt.Errorf("timeout_sec must be a positive integer")
	}
	return nil
}

// Validate checks the readiness gate settings.
func (r *ReadinessConfig) Validate() error {
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if r.Interval < 0 || r.InitialDelay < 0 {
		return fmt.Errorf("interval and initial_delay must not be negative")
	}
	return nil
}
