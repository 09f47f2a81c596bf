// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"log/slog"
	"maps"
	"slices"
	"time"
)

// DefaultStaleness is how long a thread may stay out of the samples before
// it is evicted from the process table
const DefaultStaleness = 8 * time.Second

// CgroupResolver finds the cgroup id of a thread, returning an empty string
// when the thread's cgroup cannot be read or does not belong to a container
type CgroupResolver interface {
	CgroupID(pid, tgid int32) string
}

// ProcessTable keeps per thread state across samples. It is owned by the
// collection loop and is not safe for concurrent use.
type ProcessTable struct {
	logger    *slog.Logger
	resolver  CgroupResolver
	staleness uint64

	entries map[int32]*ProcessTableEntry
}

// NewProcessTable returns an empty table. A nil resolver leaves every
// thread uncontained.
func NewProcessTable(resolver CgroupResolver, staleness time.Duration, logger *slog.Logger) *ProcessTable {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessTable{
		logger:    logger,
		resolver:  resolver,
		staleness: uint64(staleness),
		entries:   make(map[int32]*ProcessTableEntry),
	}
}

// Len returns the number of entries
func (pt *ProcessTable) Len() int {
	return len(pt.entries)
}

// Get returns the entry of a thread id
func (pt *ProcessTable) Get(id int32) (*ProcessTableEntry, bool) {
	e, ok := pt.entries[id]
	return e, ok
}

// Each calls fn for every entry in thread id order. fn must not modify the
// entry.
func (pt *ProcessTable) Each(fn func(*ProcessTableEntry)) {
	for _, id := range slices.Sorted(maps.Keys(pt.entries)) {
		fn(pt.entries[id])
	}
}

// Merge folds a sample into the table. Entries past the staleness bound are
// evicted, the remaining ones have their per window values zeroed, then the
// sample's threads update or replace their entries. It returns the number of
// evicted entries.
func (pt *ProcessTable) Merge(sample *Sample) int {
	evicted := 0
	for id, e := range pt.entries {
		if e.LastSeen+pt.staleness < sample.Cutoff {
			delete(pt.entries, id)
			evicted++
			continue
		}
		decay(e)
	}

	for id, t := range sample.Threads {
		e, ok := pt.entries[id]
		switch {
		case ok && e.Comm == t.Comm:
			e.TGID = t.TGID
			e.Counters = t.Counters
			e.Sockets = append(e.Sockets[:0], t.Sockets...)
			e.Power = t.Power
			e.CPUUsage = t.CPUUsage
			e.LastSeen = max(e.LastSeen, t.LastTS())

		case ok:
			pt.logger.Debug("Thread id reused", "id", id, "old", e.Comm, "new", t.Comm)
			pt.entries[id] = pt.newEntry(t)

		default:
			pt.entries[id] = pt.newEntry(t)
		}
	}

	if evicted > 0 {
		pt.logger.Debug("Evicted stale threads", "count", evicted, "remaining", len(pt.entries))
	}
	return evicted
}

func (pt *ProcessTable) newEntry(t *ThreadInfo) *ProcessTableEntry {
	e := &ProcessTableEntry{
		ThreadInfo: *t.Clone(),
		LastSeen:   t.LastTS(),
	}
	e.CgroupID, e.ContainerID = pt.resolve(t)
	return e
}

func (pt *ProcessTable) resolve(t *ThreadInfo) (cgroupID, containerID string) {
	if t.IsIdle() {
		return "", IdleContainerID
	}
	if pt.resolver != nil {
		cgroupID = pt.resolver.CgroupID(t.PID, t.TGID)
	}
	if len(cgroupID) < containerIDLen {
		return cgroupID, UncontainedContainerID
	}
	return cgroupID, cgroupID[:containerIDLen]
}

// decay zeroes the values that only hold for the window a thread was last
// seen in
func decay(e *ProcessTableEntry) {
	e.Counters = Counters{}
	e.Power = 0
	e.CPUUsage = 0
	for i := range e.Sockets {
		e.Sockets[i] = SocketData{}
	}
}
