// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/deepmon/deepmon/internal/capture"
	"github.com/deepmon/deepmon/internal/service"
	"github.com/deepmon/deepmon/internal/topology"
	"k8s.io/utils/clock"
)

type DataProvider interface {
	// Snapshot returns the result of the last completed tick
	Snapshot() (*Snapshot, error)

	// DataChannel returns a new channel that signals when a snapshot is
	// published
	DataChannel() <-chan struct{}

	// Topology returns the host topology the monitor samples
	Topology() *topology.Topology
}

// Service defines the interface for the monitoring service
type Service interface {
	service.Service
	DataProvider
}

// Monitor runs the collection loop: collect a sample, merge it into the
// process table, rebuild the container view, publish a snapshot and sleep
// for the rest of the window.
type Monitor struct {
	// passed externally
	logger *slog.Logger
	clock  clock.WithTicker
	topo   *topology.Topology
	source capture.Source
	energy EnergySource

	window    *WindowController
	collector *Collector
	table     *ProcessTable

	threadRecords bool

	// signalled when a snapshot has been updated
	subsMu      sync.Mutex
	subscribers []chan struct{}
	snapshot    atomic.Pointer[Snapshot]

	initialized atomic.Bool
	fatalError  atomic.Bool

	// For managing the collection loop
	collectionCtx    context.Context
	collectionCancel context.CancelFunc
}

var (
	_ Service              = (*Monitor)(nil)
	_ service.Initializer  = (*Monitor)(nil)
	_ service.Runner       = (*Monitor)(nil)
	_ service.Shutdowner   = (*Monitor)(nil)
	_ service.LiveChecker  = (*Monitor)(nil)
	_ service.ReadyChecker = (*Monitor)(nil)
)

// NewMonitor creates a Monitor sampling src on the given topology
func NewMonitor(topo *topology.Topology, src capture.Source, applyOpts ...OptionFn) (*Monitor, error) {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	if opts.staleness <= 0 {
		return nil, fmt.Errorf("staleness must be positive, got %s", opts.staleness)
	}
	window, err := NewWindowController(opts.windowMode, opts.timeslice)
	if err != nil {
		return nil, err
	}

	logger := opts.logger.With("service", "monitor")
	ctx, cancel := context.WithCancel(context.Background())

	m := &Monitor{
		logger:        logger,
		clock:         opts.clock,
		topo:          topo,
		source:        src,
		energy:        opts.energy,
		window:        window,
		table:         NewProcessTable(opts.resolver, opts.staleness, logger),
		threadRecords: opts.threadRecords,

		collectionCtx:    ctx,
		collectionCancel: cancel,
	}
	m.collector = NewCollector(topo, src, opts.energy, window,
		WithCollectorLogger(logger),
		WithCollectorClock(opts.clock),
		WithCollectorDomain(opts.domain),
	)
	return m, nil
}

func (m *Monitor) Name() string {
	return "monitor"
}

func (m *Monitor) Init() error {
	if initer, ok := m.energy.(interface{ Init() error }); ok {
		if err := initer.Init(); err != nil {
			return fmt.Errorf("energy source initialization failed: %w", err)
		}
	}

	timeslice := m.window.Timeslice()
	if err := m.source.Attach(m.collectionCtx, m.topo, uint64(timeslice)); err != nil {
		return fmt.Errorf("failed to attach %s capture: %w", m.source.Name(), err)
	}
	m.collector.Init()
	m.initialized.Store(true)

	m.logger.Info("Monitor initialized",
		"capture", m.source.Name(),
		"window", m.window.Mode(),
		"timeslice", timeslice,
		"sockets", m.topo.SocketCount(),
		"hyperthreads", m.topo.HyperthreadCount(),
	)
	return nil
}

func (m *Monitor) signalNewData() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			m.logger.Debug("Data channel is full")
		}
	}
}

func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Monitor is running...")

	wait := m.window.Timeslice()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor has terminated.")
			return nil
		case <-m.collectionCtx.Done():
			m.logger.Info("Collection loop terminated")
			return nil
		case <-m.clock.After(wait):
		}

		started := m.clock.Now()
		if err := m.refreshSnapshot(); err != nil {
			m.logger.Error("Failed to collect sample", "error", err)
		}
		wait = max(m.window.Timeslice()-m.clock.Since(started), 0)
	}
}

func (m *Monitor) Shutdown() error {
	m.logger.Info("shutting down monitor")
	m.collectionCancel()
	if err := m.source.Detach(); err != nil {
		return fmt.Errorf("failed to detach %s capture: %w", m.source.Name(), err)
	}
	return nil
}

// DataChannel registers a subscriber. The channel holds at most one pending
// signal; a subscriber that falls behind misses intermediate snapshots.
func (m *Monitor) DataChannel() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.subsMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Monitor) Topology() *topology.Topology {
	return m.topo
}

func (m *Monitor) Snapshot() (*Snapshot, error) {
	snapshot := m.snapshot.Load()
	if snapshot == nil {
		return nil, fmt.Errorf("no snapshot available yet")
	}
	return snapshot.Clone(), nil
}

// IsLive reports whether the monitor is initialized and its capture source
// is still attached
func (m *Monitor) IsLive() bool {
	return m.initialized.Load() && !m.fatalError.Load()
}

// IsReady reports whether a snapshot has been published
func (m *Monitor) IsReady() bool {
	return m.IsLive() && m.snapshot.Load() != nil
}

const (
	collectError  = "failed to collect sample: %w"
	timesliceWarn = "Failed to publish timeslice"
)

// refreshSnapshot runs one tick and publishes its snapshot. A failed
// collection publishes nothing.
func (m *Monitor) refreshSnapshot() error {
	started := m.clock.Now()

	sample, err := m.collector.Collect()
	if err != nil {
		if errors.Is(err, capture.ErrNotAttached) {
			m.fatalError.Store(true)
		}
		return fmt.Errorf(collectError, err)
	}

	evicted := m.table.Merge(sample)
	containers := BuildContainerView(m.table)

	prev := m.window.Timeslice()
	next := m.window.ComputeNextWindow(sample.SwitchCount, m.topo.HyperthreadCount())
	if next != prev {
		if err := m.source.WriteTimeslice(uint64(next)); err != nil {
			m.logger.Warn(timesliceWarn, "timeslice", next, "error", err)
		}
	}

	snapshot := &Snapshot{
		Timestamp:  sample.Timestamp,
		Sample:     sample,
		Containers: containers,
	}
	snapshot.Records = append(SampleRecords(sample, snapshot.Timestamp), ContainerRecords(containers, snapshot.Timestamp)...)
	if m.threadRecords {
		snapshot.Records = append(snapshot.Records, ThreadRecords(sample, snapshot.Timestamp)...)
	}

	m.snapshot.Store(snapshot)
	m.signalNewData()

	m.logger.Debug("refreshSnapshot",
		"threads", len(sample.Threads),
		"table", m.table.Len(),
		"evicted", evicted,
		"containers", len(containers),
		"next_timeslice", next,
		"duration", m.clock.Since(started),
	)
	return nil
}
