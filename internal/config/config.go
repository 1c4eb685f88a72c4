// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package config loads Mobius process configuration.
//
// Values are layered in order: built-in defaults, the YAML config file, then
// command-line flags that were explicitly set. DATABASE_URL from the
// environment is used when no database URL is configured.
package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/xdg"
)

// DatabaseURLEnv is the environment variable consulted for the database URL.
const DatabaseURLEnv = "DATABASE_URL"

// Defaults.
const (
	DefaultHashIterations = 1023
	DefaultRequestTimeout = 10 * time.Second
	DefaultLogFormat      = "json"
	DefaultLogLevel       = "info"
)

// Config is the full process configuration.
type Config struct {
	Hash      HashConfig      `koanf:"hash"`
	Session   SessionConfig   `koanf:"session"`
	Request   RequestConfig   `koanf:"request"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Bootstrap BootstrapConfig `koanf:"bootstrap"`
	Database  DatabaseConfig  `koanf:"database"`
}

// HashConfig configures the credential hasher.
type HashConfig struct {
	Iterations int `koanf:"iterations"`
}

// SessionConfig configures session lifetimes.
type SessionConfig struct {
	Extension time.Duration `koanf:"extension"`
}

// RequestConfig bounds CLI operations.
type RequestConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// BootstrapConfig holds the operator credentials for the first super user.
type BootstrapConfig struct {
	AdminName   string `koanf:"admin_name" yaml:"admin_name"`
	AdminDigest string `koanf:"admin_digest" yaml:"admin_digest"`
}

// DatabaseConfig locates PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"hash-iterations":        "hash.iterations",
	"session-extension":      "session.extension",
	"request-timeout":        "request.timeout",
	"log-format":             "log.format",
	"log-level":              "log.level",
	"metrics-addr":           "metrics.addr",
	"bootstrap-admin-name":   "bootstrap.admin_name",
	"bootstrap-admin-digest": "bootstrap.admin_digest",
	"database-url":           "database.url",
}

func defaults() map[string]any {
	return map[string]any{
		"hash.iterations":   DefaultHashIterations,
		"session.extension": auth.DefaultSessionExtension,
		"request.timeout":   DefaultRequestTimeout,
		"log.format":        DefaultLogFormat,
		"log.level":         DefaultLogLevel,
	}
}

// BindFlags registers the configuration flags on fs.
// Flag defaults are informational; only explicitly set flags override the
// config file.
func BindFlags(fs *pflag.FlagSet) {
	fs.Int("hash-iterations", DefaultHashIterations, "PBKDF2 iterations per hashing pass")
	fs.Duration("session-extension", auth.DefaultSessionExtension, "sliding session expiration increment")
	fs.Duration("request-timeout", DefaultRequestTimeout, "timeout for a single CLI operation")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("bootstrap-admin-name", "", "system operator name for super user bootstrap")
	fs.String("bootstrap-admin-digest", "", "digest of the system operator password")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
}

// DefaultPath returns the config file consulted when none is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path and the set
// flags. An empty path falls back to DefaultPath, which may be absent.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code(auth.CodeConfigInvalid).With("key", key).Wrap(err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, oops.Code(auth.CodeConfigInvalid).
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
		slog.Debug("no config file found, using defaults", "path", path)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(auth.CodeConfigInvalid).With("operation", "load flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(auth.CodeConfigInvalid).With("operation", "decode config").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(DatabaseURLEnv)
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	if c.Hash.Iterations <= 0 {
		problems = append(problems, "hash.iterations must be positive")
	}
	if c.Session.Extension <= 0 {
		problems = append(problems, "session.extension must be positive")
	}
	if c.Request.Timeout <= 0 {
		problems = append(problems, "request.timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		problems = append(problems, "log.format must be 'json' or 'text'")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level must be one of debug, info, warn, error")
	}
	if (c.Bootstrap.AdminName == "") != (c.Bootstrap.AdminDigest == "") {
		problems = append(problems, "bootstrap.admin_name and bootstrap.admin_digest must be set together")
	}
	if len(problems) > 0 {
		return oops.Code(auth.CodeConfigInvalid).
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Settings returns the engine settings.
func (c *Config) Settings() auth.Settings {
	return auth.Settings{SessionExtension: c.Session.Extension}
}

// BootstrapCredentials returns the configured operator credentials.
func (c *Config) BootstrapCredentials() auth.BootstrapCredentials {
	return auth.BootstrapCredentials{
		AdminName:   c.Bootstrap.AdminName,
		AdminDigest: c.Bootstrap.AdminDigest,
	}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, oops.Code(auth.CodeConfigInvalid).With("level", name).Wrap(err)
	}
	return level, nil
}
