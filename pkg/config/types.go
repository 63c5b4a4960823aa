package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/getmockd/schemagate/pkg/validation"
)

// Value sources recorded in Config.Sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Config is the complete server configuration.
type Config struct {
	// Schema is the path to the OpenAPI or Swagger document.
	Schema string `yaml:"schema" json:"schema"`

	// StrictSchema runs document validation while loading the schema.
	StrictSchema bool `yaml:"strictSchema" json:"strictSchema"`

	// Listen is the address the gateway listens on.
	Listen string `yaml:"listen" json:"listen"`

	// Upstream is the base URL requests are proxied to.
	Upstream string `yaml:"upstream" json:"upstream"`

	// ReadTimeout and WriteTimeout bound the gateway's HTTP server.
	ReadTimeout  time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout" json:"writeTimeout"`

	Validation validation.Config `yaml:"validation" json:"validation"`
	Log        LogConfig         `yaml:"log" json:"log"`
	Metrics    MetricsConfig     `yaml:"metrics" json:"metrics"`

	// Sources maps field names to the layer that set them.
	Sources map[string]string `yaml:"-" json:"-"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:       ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Validation:   validation.DefaultConfig(),
		Log:          LogConfig{Level: "info", Format: "text"},
		Metrics:      MetricsConfig{Enabled: true, Path: "/metrics"},
		Sources:      make(map[string]string),
	}
}

// ErrMissingField is wrapped by Validate for unset required fields.
var ErrMissingField = errors.New("missing required field")

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.Schema == "" {
		return fmt.Errorf("%w: schema", ErrMissingField)
	}
	if c.Listen == "" {
		return fmt.Errorf("%w: listen", ErrMissingField)
	}
	if c.Upstream != "" {
		u, err := url.Parse(c.Upstream)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream must be an absolute URL, got %q", c.Upstream)
		}
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

// Source returns the layer that set field, or SourceDefault.
func (c *Config) Source(field string) string {
	if s, ok := c.Sources[field]; ok {
		return s
	}
	return SourceDefault
}
