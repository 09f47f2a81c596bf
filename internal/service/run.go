// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/oklog/run"
)

// Run runs every Runner in its own actor of a run group. The first actor
// to return interrupts the others, and each runner is shut down as its actor
// is interrupted. Services that do not run but implement Shutdowner are shut
// down once the group has terminated. Run returns the error of the first
// actor to return.
func Run(outer context.Context, logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	logger.Info("Running all services")
	ctx, cancel := context.WithCancel(outer)
	defer cancel()

	var g run.Group
	var passive []Service
	for _, s := range services {
		runner, ok := s.(Runner)
		if !ok {
			logger.Debug("service does not run", "service", s.Name())
			passive = append(passive, s)
			continue
		}

		svc := s
		g.Add(
			func() error {
				logger.Info("Running service", "service", svc.Name())
				return runner.Run(ctx)
			},
			func(err error) {
				cancel()
				if err != nil {
					logger.Warn("service terminated", "service", svc.Name(), "reason", err)
				}

				shutdowner, ok := svc.(Shutdowner)
				if !ok {
					logger.Debug("skipping service shutting down", "service", svc.Name(),
						"reason", "service does not implement Shutdowner interface")
					return
				}

				logger.Info("shutting down", "service", svc.Name())
				if shutdownErr := shutdowner.Shutdown(); shutdownErr != nil {
					logger.Warn("service shutdown failed with error", "service", svc.Name(), "error", shutdownErr)
				}
			},
		)
	}

	err := g.Run()
	shutdownAll(logger, passive)
	return err
}
