// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"maps"
	"slices"
	"time"

	"github.com/deepmon/deepmon/internal/device"
	"k8s.io/apimachinery/pkg/util/sets"
)

type (
	Energy = device.Energy
	Power  = device.Power
	Zone   = device.Zone
)

const (
	MilliWatt = device.MilliWatt
	Watt      = device.Watt
)

// buckets for threads without a resolved container
const (
	IdleContainerID        = "idle"
	UncontainedContainerID = "uncontained"
)

// containerIDLen is the length of the short container id derived from a cgroup id
const containerIDLen = 12

// SocketData is the weighted cycle count and last update timestamp of a
// thread on one socket during the window
type SocketData struct {
	WeightedCycles uint64
	TS             uint64
}

// Counters are the raw performance counter totals of a window
type Counters struct {
	Cycles       uint64
	Instructions uint64
	CacheMisses  uint64
	CacheRefs    uint64
	TimeNS       uint64
}

func (c *Counters) add(o Counters) {
	c.Cycles += o.Cycles
	c.Instructions += o.Instructions
	c.CacheMisses += o.CacheMisses
	c.CacheRefs += o.CacheRefs
	c.TimeNS += o.TimeNS
}

// ThreadInfo is the per window view of a thread or idle slot. Idle slots
// carry negative ids.
type ThreadInfo struct {
	PID  int32
	TGID int32
	Comm string

	Counters

	// Sockets is indexed by socket
	Sockets []SocketData

	Power    Power   // attributed power
	CPUUsage float64 // percent of a single hyperthread
}

// IsIdle reports whether the entry is a per-cpu idle slot
func (t *ThreadInfo) IsIdle() bool {
	return t.PID < 0
}

// WeightedCycles returns the weighted cycles summed across sockets
func (t *ThreadInfo) WeightedCycles() uint64 {
	var total uint64
	for _, s := range t.Sockets {
		total += s.WeightedCycles
	}
	return total
}

// LastTS returns the latest socket timestamp of the thread
func (t *ThreadInfo) LastTS() uint64 {
	var latest uint64
	for _, s := range t.Sockets {
		latest = max(latest, s.TS)
	}
	return latest
}

func (t *ThreadInfo) Clone() *ThreadInfo {
	ret := *t
	ret.Sockets = slices.Clone(t.Sockets)
	return &ret
}

// DomainPower holds a power value per RAPL domain
type DomainPower map[Zone]Power

// Sample is the result of one collection tick
type Sample struct {
	// Cutoff is the latest timestamp written to the collected buffer half
	Cutoff uint64

	// ExecutionTimeNS is the time of all live threads and idle slots
	ExecutionTimeNS uint64

	SwitchCount uint64
	TimesliceNS uint64

	// Selector is the buffer half the sample was read from
	Selector uint32

	// Power is the active power per domain summed over sockets
	Power DomainPower

	// SocketPower is indexed by socket
	SocketPower []DomainPower

	Threads map[int32]*ThreadInfo

	Timestamp time.Time
}

// ExecutionTime returns ExecutionTimeNS as a duration
func (s *Sample) ExecutionTime() time.Duration {
	return time.Duration(s.ExecutionTimeNS)
}

func (s *Sample) Clone() *Sample {
	if s == nil {
		return nil
	}
	ret := *s
	ret.Power = maps.Clone(s.Power)
	ret.SocketPower = make([]DomainPower, len(s.SocketPower))
	for i, p := range s.SocketPower {
		ret.SocketPower[i] = maps.Clone(p)
	}
	ret.Threads = make(map[int32]*ThreadInfo, len(s.Threads))
	for id, t := range s.Threads {
		ret.Threads[id] = t.Clone()
	}
	return &ret
}

// ProcessTableEntry is the durable state of a thread across ticks
type ProcessTableEntry struct {
	ThreadInfo

	CgroupID    string
	ContainerID string

	// LastSeen is the latest socket timestamp the thread was observed with.
	// It survives decay.
	LastSeen uint64
}

func (e *ProcessTableEntry) Clone() *ProcessTableEntry {
	ret := *e
	ret.Sockets = slices.Clone(e.Sockets)
	return &ret
}

// ContainerAggregate sums the process table entries of one container
type ContainerAggregate struct {
	ID string

	Counters
	WeightedCycles uint64

	Power    Power
	CPUUsage float64

	Threads  sets.Set[int32]
	LastSeen uint64
}

// ThreadCount returns the number of contributing threads
func (c *ContainerAggregate) ThreadCount() int {
	return c.Threads.Len()
}

// IPC returns the instructions per cycle of the container, 0 without cycles
func (c *ContainerAggregate) IPC() float64 {
	if c.Cycles == 0 {
		return 0
	}
	return float64(c.Instructions) / float64(c.Cycles)
}

func (c *ContainerAggregate) Clone() *ContainerAggregate {
	ret := *c
	ret.Threads = c.Threads.Clone()
	return &ret
}

// Containers maps container ids to their aggregates
type Containers map[string]*ContainerAggregate

// Snapshot is the published result of a tick
type Snapshot struct {
	Timestamp time.Time

	Sample     *Sample
	Containers Containers
	Records    []MetricRecord
}

// NewSnapshot returns an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Containers: make(Containers),
	}
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	ret := &Snapshot{
		Timestamp:  s.Timestamp,
		Sample:     s.Sample.Clone(),
		Containers: make(Containers, len(s.Containers)),
		Records:    slices.Clone(s.Records),
	}
	for id, c := range s.Containers {
		ret.Containers[id] = c.Clone()
	}
	return ret
}
