// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package xdg provides XDG Base Directory paths for Mobius.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "mobius"

// ConfigDir returns the Mobius config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "create directory")
	}
	return nil
}
