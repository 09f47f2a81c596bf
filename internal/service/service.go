// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package service defines the lifecycle every deepmon component follows:
// services are initialized in order, run concurrently until one of them
// returns and are shut down when the group terminates.
package service

import "context"

// Service is the interface that all services must implement
type Service interface {
	// Name returns the name of the service
	Name() string
}

// Initializer is implemented by services that need setup before running
type Initializer interface {
	Service
	Init() error
}

// Runner is implemented by services that run in the background
type Runner interface {
	Service
	// Run runs the service and is expected to block and be thread safe
	Run(ctx context.Context) error
}

// Shutdowner is implemented by services holding resources that must be released
type Shutdowner interface {
	Service
	// Shutdown shuts down the service
	Shutdown() error
}

// LiveChecker is implemented by services that can report they are alive
type LiveChecker interface {
	Service
	IsLive() bool
}

// ReadyChecker is implemented by services that can report they are ready
// to serve data
type ReadyChecker interface {
	Service
	IsReady() bool
}
