// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"log/slog"
)

// Options contains all the configuration for the CgroupResolver
type Options struct {
	logger  *slog.Logger
	roots   []string
	readers []cgroupReader
}

// OptionFn is a function that configures the Options
type OptionFn func(*Options)

// WithProcFSRoots sets the procfs mounts searched in order, typically the
// host mount followed by the local one
func WithProcFSRoots(roots ...string) OptionFn {
	return func(o *Options) {
		o.roots = roots
	}
}

// withCgroupReaders replaces the procfs readers
func withCgroupReaders(readers ...cgroupReader) OptionFn {
	return func(o *Options) {
		o.readers = readers
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Options) {
		o.logger = logger
	}
}

// defaultOptions returns the default options
func defaultOptions() *Options {
	return &Options{
		logger: slog.Default(),
		roots:  []string{"/host/proc", "/proc"},
	}
}
