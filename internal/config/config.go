package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultInstanceName    = "contact-relay-1"
	defaultLogLevel        = "info"
	defaultUpstreamTimeout = 10 * time.Second
	defaultUserAgent       = "Contact Form Relay"
	defaultMaxBodyBytes    = 1 << 20
)

var defaultRedactFields = []string{"phone", "email"}

type Config struct {
	Port            string        `mapstructure:"backend_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	InstanceName    string        `mapstructure:"instance_name"`
	LogLevel        string        `mapstructure:"log_level"`

	// UpstreamURL is the Apps Script endpoint submissions are relayed to.
	// Empty is allowed at startup; every submission then fails as a
	// server configuration error.
	UpstreamURL       string        `mapstructure:"google_script_from"`
	UpstreamTimeout   time.Duration `mapstructure:"upstream_timeout"`
	UpstreamUserAgent string        `mapstructure:"upstream_user_agent"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	LogRedactFields   []string      `mapstructure:"log_redact_fields"`

	ConfigPath string `mapstructure:"-"`
}

// Load reads the configuration from the environment and, when CONFIG_FILE
// names one, from a config file. Environment values win over the file.
func Load() (Config, error) {
	var cfg Config

	v := viper.New()
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	v.SetDefault("backend_port", defaultPort)
	v.SetDefault("read_timeout", defaultReadTimeout)
	v.SetDefault("write_timeout", defaultWriteTimeout)
	v.SetDefault("idle_timeout", defaultIdleTimeout)
	v.SetDefault("shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("instance_name", defaultInstanceName)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("google_script_from", "")
	v.SetDefault("upstream_timeout", defaultUpstreamTimeout)
	v.SetDefault("upstream_user_agent", defaultUserAgent)
	v.SetDefault("max_body_bytes", defaultMaxBodyBytes)
	v.SetDefault("log_redact_fields", defaultRedactFields)

	if path, ok := os.LookupEnv("CONFIG_FILE"); ok && path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	cfg.UpstreamURL = strings.TrimSpace(cfg.UpstreamURL)
	cfg.LogRedactFields = cleanFields(cfg.LogRedactFields)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with. A missing upstream
// URL is not one of them.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("backend_port must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"idle_timeout":     c.IdleTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
		"upstream_timeout": c.UpstreamTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: %s", name, d)
		}
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max_body_bytes: %d", c.MaxBodyBytes)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.UpstreamURL != "" {
		u, err := url.Parse(c.UpstreamURL)
		if err != nil {
			return fmt.Errorf("invalid google_script_from: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid google_script_from %q: want an absolute http(s) URL", c.UpstreamURL)
		}
	}
	return nil
}

// UpstreamConfigured reports whether submissions can be relayed at all.
func (c Config) UpstreamConfigured() bool {
	return c.UpstreamURL != ""
}

// cleanFields splits comma separated entries and drops blanks, so both
// LOG_REDACT_FIELDS="phone, email" and a YAML list decode the same way.
func cleanFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, part := range strings.Split(f, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
