// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dockerID = strings.Repeat("ab12", 16)

func thread(pid int32, comm string, ts uint64, power Power, usage float64) *ThreadInfo {
	return &ThreadInfo{
		PID:      pid,
		TGID:     pid,
		Comm:     comm,
		Counters: Counters{Cycles: 1000, Instructions: 2000, CacheMisses: 3, CacheRefs: 40, TimeNS: 500},
		Sockets:  []SocketData{{WeightedCycles: 600, TS: ts}, {WeightedCycles: 0, TS: 0}},
		Power:    power,
		CPUUsage: usage,
	}
}

func sampleOf(cutoff uint64, threads ...*ThreadInfo) *Sample {
	s := &Sample{Cutoff: cutoff, Threads: map[int32]*ThreadInfo{}}
	for _, t := range threads {
		s.Threads[t.PID] = t
	}
	return s
}

func TestProcessTableInsertResolvesContainer(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("CgroupID", int32(42), int32(42)).Return(dockerID)
	resolver.On("CgroupID", int32(43), int32(43)).Return("")

	pt := NewProcessTable(resolver, DefaultStaleness, slog.Default())
	pt.Merge(sampleOf(100,
		thread(42, "worker", 100, 60*MilliWatt, 250),
		thread(43, "bash", 100, 0, 0),
		thread(-1, "swapper/0", 100, 40*MilliWatt, 150),
	))

	require.Equal(t, 3, pt.Len())
	e, ok := pt.Get(42)
	require.True(t, ok)
	assert.Equal(t, dockerID, e.CgroupID)
	assert.Equal(t, dockerID[:12], e.ContainerID)
	assert.Equal(t, uint64(100), e.LastSeen)

	e, _ = pt.Get(43)
	assert.Equal(t, UncontainedContainerID, e.ContainerID)

	e, _ = pt.Get(-1)
	assert.Equal(t, IdleContainerID, e.ContainerID)

	// idle slots never hit the filesystem
	resolver.AssertNumberOfCalls(t, "CgroupID", 2)
}

func TestProcessTableDecay(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("CgroupID", int32(42), int32(42)).Return(dockerID)

	pt := NewProcessTable(resolver, DefaultStaleness, nil)
	pt.Merge(sampleOf(100, thread(42, "worker", 100, 60*MilliWatt, 250)))

	// absent from the next sample but inside the staleness bound
	pt.Merge(sampleOf(uint64(time.Second)))

	e, ok := pt.Get(42)
	require.True(t, ok)
	assert.Zero(t, e.Power)
	assert.Zero(t, e.CPUUsage)
	assert.Equal(t, Counters{}, e.Counters)
	assert.Equal(t, []SocketData{{}, {}}, e.Sockets)
	assert.Equal(t, dockerID[:12], e.ContainerID)
	assert.Equal(t, uint64(100), e.LastSeen)

	view := BuildContainerView(pt)
	c := view[dockerID[:12]]
	require.NotNil(t, c)
	assert.Zero(t, c.Power)
	assert.Zero(t, c.CPUUsage)
	assert.Zero(t, c.WeightedCycles)
	assert.Equal(t, Counters{}, c.Counters)
	assert.Zero(t, c.IPC())
	assert.Equal(t, 1, c.ThreadCount())
}

func TestProcessTableEviction(t *testing.T) {
	staleness := 8 * time.Second
	pt := NewProcessTable(nil, staleness, nil)

	const seen = 1_000
	pt.Merge(sampleOf(seen, thread(1, "stale", seen, 0, 0), thread(2, "fresh", seen+1, 0, 0)))

	// cutoff == seen + staleness + 1: entry 1 is just outside, entry 2 exactly on the bound
	evicted := pt.Merge(sampleOf(seen + uint64(staleness) + 1))
	assert.Equal(t, 1, evicted)

	_, ok := pt.Get(1)
	assert.False(t, ok)
	_, ok = pt.Get(2)
	assert.True(t, ok)
}

func TestProcessTableMergeInPlace(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("CgroupID", int32(42), int32(42)).Return(dockerID).Once()

	pt := NewProcessTable(resolver, DefaultStaleness, nil)
	pt.Merge(sampleOf(100, thread(42, "worker", 100, 60*MilliWatt, 250)))

	next := thread(42, "worker", 2_000, 10*MilliWatt, 20)
	next.Cycles = 7
	pt.Merge(sampleOf(2_000, next))

	e, _ := pt.Get(42)
	assert.Equal(t, uint64(7), e.Cycles)
	assert.Equal(t, 10*MilliWatt, e.Power)
	assert.Equal(t, 20.0, e.CPUUsage)
	assert.Equal(t, uint64(2_000), e.LastSeen)
	assert.Equal(t, dockerID[:12], e.ContainerID)
	resolver.AssertExpectations(t)

	// the entry does not alias the sample
	next.Sockets[0].WeightedCycles = 99
	assert.Equal(t, uint64(600), e.Sockets[0].WeightedCycles)
}

func TestProcessTablePIDReuse(t *testing.T) {
	other := strings.Repeat("cd34", 16)
	resolver := &MockResolver{}
	resolver.On("CgroupID", int32(42), int32(42)).Return(dockerID).Once()
	resolver.On("CgroupID", int32(42), int32(42)).Return(other).Once()

	pt := NewProcessTable(resolver, DefaultStaleness, nil)
	old := thread(42, "worker", 100, 60*MilliWatt, 250)
	old.Instructions = 123_456
	pt.Merge(sampleOf(100, old))

	reused := thread(42, "nginx", 200, 5*MilliWatt, 1)
	reused.Instructions = 1
	pt.Merge(sampleOf(200, reused))

	e, _ := pt.Get(42)
	assert.Equal(t, "nginx", e.Comm)
	assert.Equal(t, other, e.CgroupID)
	assert.Equal(t, other[:12], e.ContainerID)
	assert.Equal(t, uint64(1), e.Instructions)
	assert.Equal(t, uint64(200), e.LastSeen)
	resolver.AssertExpectations(t)
}

func TestProcessTableResolverTGIDFallback(t *testing.T) {
	resolver := &MockResolver{}
	resolver.On("CgroupID", int32(101), int32(100)).Return(dockerID)

	pt := NewProcessTable(resolver, DefaultStaleness, nil)
	th := thread(101, "worker-1", 10, 0, 0)
	th.TGID = 100
	pt.Merge(sampleOf(10, th))

	e, _ := pt.Get(101)
	assert.Equal(t, dockerID[:12], e.ContainerID)
}
