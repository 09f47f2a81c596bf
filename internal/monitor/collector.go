// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"fmt"
	"log/slog"

	"github.com/deepmon/deepmon/internal/capture"
	"github.com/deepmon/deepmon/internal/device"
	"github.com/deepmon/deepmon/internal/topology"
	"k8s.io/utils/clock"
)

// EnergySource samples the energy registers of every socket and domain
type EnergySource interface {
	SampleAll() device.Readings
}

// Collector turns the vacated half of the capture tables into a Sample
type Collector struct {
	logger *slog.Logger
	clock  clock.PassiveClock

	topo   *topology.Topology
	source capture.Source
	energy EnergySource
	window *WindowController

	// domain whose power is apportioned to threads
	domain Zone

	prev device.Readings
}

type CollectorOptFn func(*Collector)

func WithCollectorLogger(l *slog.Logger) CollectorOptFn {
	return func(c *Collector) {
		c.logger = l
	}
}

func WithCollectorClock(clk clock.PassiveClock) CollectorOptFn {
	return func(c *Collector) {
		c.clock = clk
	}
}

// WithCollectorDomain sets the RAPL domain split across threads
func WithCollectorDomain(z Zone) CollectorOptFn {
	return func(c *Collector) {
		c.domain = z
	}
}

// NewCollector returns a collector reading src. energy may be nil, in which
// case every power value is zero.
func NewCollector(topo *topology.Topology, src capture.Source, energy EnergySource, window *WindowController, opts ...CollectorOptFn) *Collector {
	c := &Collector{
		logger: slog.Default(),
		clock:  clock.RealClock{},
		topo:   topo,
		source: src,
		energy: energy,
		window: window,
		domain: device.ZoneCore,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init takes the reference energy reading the first sample is measured from
func (c *Collector) Init() {
	if c.energy != nil {
		c.prev = c.energy.SampleAll()
	}
}

// Collect flips the selector and builds a Sample from the half just closed.
// Energy is sampled before the flip is published so it covers the same
// interval as the counters. Any capture read error fails the whole tick.
func (c *Collector) Collect() (*Sample, error) {
	switches, err := c.source.ReadSwitchCount()
	if err != nil {
		return nil, fmt.Errorf("failed to read switch count: %w", err)
	}

	read := c.window.Flip()

	var curr device.Readings
	if c.energy != nil {
		curr = c.energy.SampleAll()
	}

	if err := c.source.WriteSelector(c.window.Selector()); err != nil {
		// the producer still writes the old half, keep measuring from prev
		c.window.Restore(read)
		return nil, fmt.Errorf("failed to publish selector: %w", err)
	}
	diffs := curr.Since(c.prev)
	c.prev = curr

	cutoff, err := c.source.ReadMaxTimestamp(read)
	if err != nil {
		return nil, fmt.Errorf("failed to read max timestamp: %w", err)
	}
	threads, err := c.source.ReadThreadTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread table: %w", err)
	}
	idles, err := c.source.ReadIdleTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read idle table: %w", err)
	}

	timeslice := uint64(c.window.Timeslice())
	sockets := c.topo.SocketCount()
	sample := &Sample{
		Cutoff:      cutoff,
		SwitchCount: switches,
		TimesliceNS: timeslice,
		Selector:    read,
		Threads:     make(map[int32]*ThreadInfo),
		Timestamp:   c.clock.Now(),
	}
	c.fillPower(sample, diffs, sockets)

	totalCycles := make([]uint64, sockets)
	var live []*ThreadInfo
	accumulate := func(rec capture.RawThreadRecord, id int32, tgid int32) {
		slot := rec.Slot(read)
		if !isLive(slot, timeslice, cutoff) {
			return
		}
		t := threadInfo(rec, slot, id, tgid, sockets)
		sample.ExecutionTimeNS += t.TimeNS
		for s, sd := range t.Sockets {
			totalCycles[s] += sd.WeightedCycles
		}
		live = append(live, t)
	}
	for _, rec := range threads {
		accumulate(rec, rec.ID, rec.TGID)
	}
	for _, rec := range idles {
		id := IdleID(rec.ID)
		accumulate(rec, id, id)
	}

	socketPower := make([]Power, sockets)
	for s, p := range sample.SocketPower {
		socketPower[s] = p[c.domain]
	}
	hyperthreads := c.topo.HyperthreadCount()
	threadCycles := make([]uint64, sockets)
	for _, t := range live {
		for s, sd := range t.Sockets {
			threadCycles[s] = sd.WeightedCycles
		}
		t.Power = ApportionPower(socketPower, threadCycles, totalCycles)
		t.CPUUsage = CPUUsage(t.TimeNS, sample.ExecutionTimeNS, hyperthreads)
		sample.Threads[t.PID] = t
	}

	c.logger.Debug("Collected sample",
		"selector", read,
		"cutoff", cutoff,
		"threads", len(sample.Threads),
		"execution_time", sample.ExecutionTime(),
		"switches", switches,
	)
	return sample, nil
}

// fillPower converts the energy diffs into per socket and per domain power.
// A socket whose diff is missing or unusable contributes zero.
func (c *Collector) fillPower(sample *Sample, diffs map[device.ZoneKey]device.EnergyDiff, sockets int) {
	sample.Power = make(DomainPower, len(device.Domains))
	sample.SocketPower = make([]DomainPower, sockets)
	for s := range sockets {
		sample.SocketPower[s] = make(DomainPower, len(device.Domains))
		for _, d := range device.Domains {
			diff, ok := diffs[device.ZoneKey{Domain: d, Socket: s}]
			if !ok {
				continue
			}
			p, err := diff.Power()
			if err != nil {
				c.logger.Warn("Skipping socket power", "socket", s, "domain", d, "error", err)
				continue
			}
			sample.SocketPower[s][d] = p
			sample.Power[d] += p
		}
	}
}

// IdleID maps a per-cpu idle slot index to its synthetic thread id
func IdleID(slot int32) int32 {
	return -1 - slot
}

// isLive reports whether any socket of the slot was written within the
// window ending at cutoff. Sockets never written carry a zero timestamp.
func isLive(slot *capture.SlotCounters, timeslice, cutoff uint64) bool {
	for _, sc := range slot.Sockets {
		if sc.TS != 0 && sc.TS+timeslice > cutoff {
			return true
		}
	}
	return false
}

func threadInfo(rec capture.RawThreadRecord, slot *capture.SlotCounters, id, tgid int32, sockets int) *ThreadInfo {
	t := &ThreadInfo{
		PID:  id,
		TGID: tgid,
		Comm: rec.Comm,
		Counters: Counters{
			Cycles:       slot.Cycles,
			Instructions: slot.Instructions,
			CacheMisses:  slot.CacheMisses,
			CacheRefs:    slot.CacheRefs,
			TimeNS:       slot.TimeNS,
		},
		Sockets: make([]SocketData, sockets),
	}
	for s := 0; s < sockets && s < len(slot.Sockets); s++ {
		t.Sockets[s] = SocketData{
			WeightedCycles: slot.Sockets[s].WeightedCycles,
			TS:             slot.Sockets[s].TS,
		}
	}
	return t
}
