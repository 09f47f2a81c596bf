// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package csv writes the metric records of every published snapshot as a
// CSV trace, one row per record.
package csv

import (
	"context"
	encodingcsv "encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/deepmon/deepmon/internal/monitor"
	"github.com/deepmon/deepmon/internal/service"
	"github.com/jszwec/csvutil"
)

// StdoutPath selects standard output instead of a file
const StdoutPath = "-"

type (
	Initializer = service.Initializer
	Runner      = service.Runner
	Shutdowner  = service.Shutdowner
	Monitor     = monitor.DataProvider
)

// Exporter appends snapshot records to a CSV file
type Exporter struct {
	logger  *slog.Logger
	monitor Monitor
	path    string

	// mu guards the writer; Shutdown may run before Run has returned
	mu  sync.Mutex
	out io.WriteCloser
	w   *encodingcsv.Writer
	enc *csvutil.Encoder

	// last snapshot written, a coalesced signal must not repeat it
	last *monitor.Snapshot
}

var (
	_ Initializer = (*Exporter)(nil)
	_ Runner      = (*Exporter)(nil)
	_ Shutdowner  = (*Exporter)(nil)
)

type Opts struct {
	logger *slog.Logger
	path   string
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		path:   StdoutPath,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithPath sets the file the trace is written to
func WithPath(path string) OptionFn {
	return func(o *Opts) {
		o.path = path
	}
}

func NewExporter(m Monitor, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger:  opts.logger.With("service", "csv"),
		monitor: m,
		path:    opts.path,
	}
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "csv"
}

// Init opens the trace file, truncating an existing one
func (e *Exporter) Init() error {
	if e.path == StdoutPath {
		e.out = nopCloser{os.Stdout}
	} else {
		f, err := os.Create(e.path)
		if err != nil {
			return fmt.Errorf("failed to create csv trace: %w", err)
		}
		e.out = f
	}

	e.w = encodingcsv.NewWriter(e.out)
	e.enc = csvutil.NewEncoder(e.w)
	e.logger.Info("Writing csv trace", "path", e.path)
	return nil
}

func (e *Exporter) Run(ctx context.Context) error {
	data := e.monitor.DataChannel()
	for {
		select {
		case <-data:
			snapshot, err := e.monitor.Snapshot()
			if err != nil {
				e.logger.Warn("Failed to read snapshot", "error", err)
				continue
			}
			if err := e.write(snapshot); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (e *Exporter) write(snapshot *monitor.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.out == nil {
		return nil
	}
	if e.last != nil && snapshot.Timestamp.Equal(e.last.Timestamp) {
		return nil
	}
	e.last = snapshot
	if len(snapshot.Records) == 0 {
		return nil
	}

	if err := e.enc.Encode(snapshot.Records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return fmt.Errorf("failed to write csv trace: %w", err)
	}
	return nil
}

// Shutdown flushes pending rows and closes the trace file
func (e *Exporter) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.out == nil {
		return nil
	}
	e.w.Flush()
	flushErr := e.w.Error()
	if err := e.out.Close(); err != nil {
		return fmt.Errorf("failed to close csv trace: %w", err)
	}
	e.out = nil
	return flushErr
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
