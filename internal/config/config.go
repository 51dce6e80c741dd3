// Package config provides configuration structures and loading logic for tracecmp.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tracecmp/internal/models"
)

// Config represents the root configuration structure for tracecmp.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Jaeger  JaegerConfig  `mapstructure:"jaeger"`
	Report  ReportConfig  `mapstructure:"report"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AppConfig defines process-wide settings such as logging.
type AppConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// JaegerConfig defines connection settings for the Jaeger query API.
type JaegerConfig struct {
	URL     string `mapstructure:"url"`
	Service string `mapstructure:"service"`
	Limit   int    `mapstructure:"limit"`
	Timeout string `mapstructure:"timeout"`
}

// ReportConfig defines how traces are sampled and filtered for a report.
type ReportConfig struct {
	Samples int    `mapstructure:"samples"`
	Status  string `mapstructure:"status"`
}

// ServerConfig defines the listen address of `tracecmp serve`.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MetricsConfig defines where run metrics are exported.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// GetTimeoutDuration returns the timeout as a time.Duration. An empty or
// invalid value yields 0, which leaves the HTTP transport defaults in charge.
func (c *JaegerConfig) GetTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// StatusFilter returns the parsed report status filter.
func (c *ReportConfig) StatusFilter() models.StatusFilter {
	f, err := models.ParseStatusFilter(c.Status)
	if err != nil {
		return models.StatusAll
	}
	return f
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewViper returns a viper instance with tracecmp defaults, config file
// search paths and TRACECMP_* environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("tracecmp")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.config/tracecmp")

	// Allow environment variables to override config
	v.SetEnvPrefix("TRACECMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")
	v.SetDefault("jaeger.url", "http://localhost:16686")
	v.SetDefault("jaeger.service", "opz-e2e")
	v.SetDefault("jaeger.limit", 200)
	v.SetDefault("jaeger.timeout", "")
	v.SetDefault("report.samples", 1)
	v.SetDefault("report.status", string(models.StatusAll))
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.textfile", "")

	return v
}

// Load reads the optional config file into v and unmarshals the result.
// configFile, when set, replaces the search paths.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail later in the pipeline.
func (c *Config) Validate() error {
	if _, err := models.ParseStatusFilter(c.Report.Status); err != nil {
		return err
	}
	if c.Jaeger.Limit < 1 {
		return fmt.Errorf("invalid limit %d: must be at least 1", c.Jaeger.Limit)
	}
	if c.Jaeger.Timeout != "" {
		if _, err := time.ParseDuration(c.Jaeger.Timeout); err != nil {
			return fmt.Errorf("invalid jaeger timeout %q: %w", c.Jaeger.Timeout, err)
		}
	}
	if strings.TrimSpace(c.Jaeger.URL) == "" {
		return errors.New("jaeger url must not be empty")
	}
	return nil
}
