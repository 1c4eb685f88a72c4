// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"log/slog"
	"time"
)

// Clock returns the current instant. Services always normalise it to UTC.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// Settings holds the engine parameters that come from process configuration.
type Settings struct {
	// SessionExtension is the sliding expiration increment.
	SessionExtension time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{SessionExtension: DefaultSessionExtension}
}

func (s Settings) withDefaults() Settings {
	if s.SessionExtension <= 0 {
		s.SessionExtension = DefaultSessionExtension
	}
	return s
}

// options are shared by every service constructor.
type options struct {
	logger *slog.Logger
	clock  Clock
}

// Option configures a service.
type Option func(*options)

// WithLogger sets the logger used by a service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		clock:  systemClock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = systemClock
	}
	return o
}

func (o options) now() time.Time {
	return o.clock().UTC()
}
