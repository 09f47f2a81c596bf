// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"log/slog"
	"time"

	"github.com/deepmon/deepmon/internal/device"
	"k8s.io/utils/clock"
)

type Opts struct {
	logger    *slog.Logger
	clock     clock.WithTicker
	energy    EnergySource
	resolver  CgroupResolver
	staleness time.Duration
	domain    Zone

	windowMode WindowMode
	timeslice  time.Duration

	threadRecords bool
}

// DefaultOpts returns the options of a dynamic window monitor without
// energy measurement or cgroup resolution
func DefaultOpts() Opts {
	return Opts{
		logger:     slog.Default(),
		clock:      clock.RealClock{},
		staleness:  DefaultStaleness,
		domain:     device.ZoneCore,
		windowMode: WindowDynamic,
		timeslice:  DefaultTimeslice,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Monitor
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the clock of the Monitor
func WithClock(c clock.WithTicker) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// WithEnergySource sets the source of socket energy readings. A source that
// also implements Init() error is initialized with the Monitor.
func WithEnergySource(e EnergySource) OptionFn {
	return func(o *Opts) {
		o.energy = e
	}
}

// WithCgroupResolver sets the resolver used for new process table entries
func WithCgroupResolver(r CgroupResolver) OptionFn {
	return func(o *Opts) {
		o.resolver = r
	}
}

// WithStaleness sets how long threads survive without being sampled
func WithStaleness(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.staleness = d
	}
}

// WithAttributionDomain sets the RAPL domain apportioned to threads
func WithAttributionDomain(z Zone) OptionFn {
	return func(o *Opts) {
		o.domain = z
	}
}

// WithWindow sets the window mode and the initial (or fixed) timeslice
func WithWindow(mode WindowMode, timeslice time.Duration) OptionFn {
	return func(o *Opts) {
		o.windowMode = mode
		o.timeslice = timeslice
	}
}

// WithThreadRecords adds per thread records to every snapshot
func WithThreadRecords(enabled bool) OptionFn {
	return func(o *Opts) {
		o.threadRecords = enabled
	}
}
