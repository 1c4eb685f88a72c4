// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

// Package errutil logs and inspects oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at ERROR with structured context.
// For oops errors the code and context map are logged as separate attributes.
// Extra attrs are appended as key/value pairs.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.ErrorContext(ctx, msg, append(errorAttrs(err), attrs...)...)
}

// LogWarn is LogError at WARN level.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.WarnContext(ctx, msg, append(errorAttrs(err), attrs...)...)
}

// Code returns the oops code of err, or "" if err carries none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code, ok := oopsErr.Code().(string); ok {
		return code
	}
	return ""
}

func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
