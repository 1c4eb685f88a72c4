// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjmobius/mobius/internal/auth"
	"github.com/pjmobius/mobius/internal/config"
	"github.com/pjmobius/mobius/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.DatabaseURLEnv, "")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 1023, cfg.Hash.Iterations)
	assert.Equal(t, 30*time.Minute, cfg.Session.Extension)
	assert.Equal(t, 10*time.Second, cfg.Request.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Empty(t, cfg.Database.URL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DefaultPathIsRead(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mobius"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mobius", "config.yaml"), []byte("log:\n  format: text\n"), 0o600))

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, filepath.Join(dir, "mobius", "config.yaml"), config.DefaultPath())
}

func TestLoad_FileOverlay(t *testing.T) {
	t.Setenv(config.DatabaseURLEnv, "postgres://env/db")
	path := writeConfig(t, `
hash:
  iterations: 5000
session:
  extension: 45m
log:
  format: text
  level: debug
metrics:
  addr: 127.0.0.1:9100
bootstrap:
  admin_name: sysadmin
  admin_digest: abc123
database:
  url: postgres://file/db
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Hash.Iterations)
	assert.Equal(t, 45*time.Minute, cfg.Session.Extension)
	assert.Equal(t, 10*time.Second, cfg.Request.Timeout, "unset keys keep defaults")
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
	assert.Equal(t, auth.BootstrapCredentials{AdminName: "sysadmin", AdminDigest: "abc123"}, cfg.BootstrapCredentials())
	assert.Equal(t, "postgres://file/db", cfg.Database.URL, "file wins over environment")
	assert.Equal(t, auth.Settings{SessionExtension: 45 * time.Minute}, cfg.Settings())
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "hash:\n  iterations: 5000\nlog:\n  format: text\n")
	fs := newFlags(t, "--hash-iterations=7", "--session-extension=1h", "--database-url=postgres://flag/db")

	cfg, err := config.Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Hash.Iterations)
	assert.Equal(t, time.Hour, cfg.Session.Extension)
	assert.Equal(t, "text", cfg.Log.Format, "unset flags do not override the file")
	assert.Equal(t, "postgres://flag/db", cfg.Database.URL)
}

func TestLoad_EnvironmentFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.DatabaseURLEnv, "postgres://env/db")

	cfg, err := config.Load("", newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
		errutil.AssertErrorCode(t, err, auth.CodeConfigInvalid)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "hash: [unclosed\n"), nil)
		errutil.AssertErrorCode(t, err, auth.CodeConfigInvalid)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "session:\n  extension: forever\n"), nil)
		errutil.AssertErrorCode(t, err, auth.CodeConfigInvalid)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Hash:    config.HashConfig{Iterations: 1023},
			Session: config.SessionConfig{Extension: time.Minute},
			Request: config.RequestConfig{Timeout: time.Second},
			Log:     config.LogConfig{Format: "json", Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		problem string
	}{
		{"zero iterations", func(c *config.Config) { c.Hash.Iterations = 0 }, "hash.iterations"},
		{"zero extension", func(c *config.Config) { c.Session.Extension = 0 }, "session.extension"},
		{"negative timeout", func(c *config.Config) { c.Request.Timeout = -time.Second }, "request.timeout"},
		{"bad format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad level", func(c *config.Config) { c.Log.Level = "chatty" }, "log.level"},
		{"half bootstrap", func(c *config.Config) { c.Bootstrap.AdminName = "sysadmin" }, "bootstrap"},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, auth.CodeConfigInvalid)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := config.ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = config.ParseLevel("loud")
	assert.Error(t, err)
}
