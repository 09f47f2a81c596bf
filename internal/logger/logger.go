// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

var logLevel = new(slog.LevelVar)

// New returns a text or json logger writing to w. The level is shared by
// every logger New returns and can be changed with SetLevel.
func New(level, format string, w io.Writer) *slog.Logger {
	logLevel.Set(parseLogLevel(level))
	return slog.New(handlerForFormat(format, w))
}

// LogLevel returns the current level of the loggers created by New
func LogLevel() slog.Level {
	return logLevel.Level()
}

// SetLevel changes the level of every logger created by New
func SetLevel(level string) {
	logLevel.Set(parseLogLevel(level))
}

func handlerForFormat(format string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       logLevel,
		AddSource:   true,
		ReplaceAttr: shortenSource,
	}

	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		panic(fmt.Sprintf("invalid format: %s", format))
	}
}

// shortenSource keeps the last two directories and the file name of the
// source attribute
func shortenSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	src, ok := a.Value.Any().(*slog.Source)
	if !ok {
		return a
	}

	parts := strings.Split(filepath.ToSlash(src.File), "/")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	src.File = filepath.Join(parts...)
	return a
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
