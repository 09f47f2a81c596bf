// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"testing"

	"github.com/jaypipes/ghw/pkg/cpu"
	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCPUInfo struct {
	infos []procfs.CPUInfo
	err   error
}

func (f fakeCPUInfo) CPUInfo() ([]procfs.CPUInfo, error) {
	return f.infos, f.err
}

func twoSocketInfo() []procfs.CPUInfo {
	// 2 sockets x 1 core x 2 hyperthreads, linux style interleaved numbering
	return []procfs.CPUInfo{
		{Processor: 0, PhysicalID: "0", CoreID: "0"},
		{Processor: 1, PhysicalID: "1", CoreID: "0"},
		{Processor: 2, PhysicalID: "0", CoreID: "0"},
		{Processor: 3, PhysicalID: "1", CoreID: "0"},
	}
}

func TestFromCPUInfo(t *testing.T) {
	topo, err := fromCPUInfo(fakeCPUInfo{infos: twoSocketInfo()})
	require.NoError(t, err)

	assert.Equal(t, 4, topo.HyperthreadCount())
	assert.Equal(t, 2, topo.SocketCount())
	assert.Equal(t, 2, topo.PhysicalCoreCount())
	assert.Equal(t, []int{0, 1}, topo.Sockets())

	cpus := topo.CPUs()
	assert.Equal(t, CPU{HyperthreadID: 0, SiblingID: 2, CoreID: 0, SocketID: 0}, cpus[0])
	assert.Equal(t, CPU{HyperthreadID: 1, SiblingID: 3, CoreID: 0, SocketID: 1}, cpus[1])
	assert.Equal(t, CPU{HyperthreadID: 2, SiblingID: 0, CoreID: 0, SocketID: 0}, cpus[2])
	assert.Equal(t, CPU{HyperthreadID: 3, SiblingID: 1, CoreID: 0, SocketID: 1}, cpus[3])
}

func TestFromCPUInfoErrors(t *testing.T) {
	tt := []struct {
		name  string
		infos []procfs.CPUInfo
		err   error
	}{{
		name: "read error",
		err:  errors.New("boom"),
	}, {
		name:  "empty",
		infos: []procfs.CPUInfo{},
	}, {
		name:  "missing physical id",
		infos: []procfs.CPUInfo{{Processor: 0, CoreID: "0"}},
	}, {
		name:  "malformed core id",
		infos: []procfs.CPUInfo{{Processor: 0, PhysicalID: "0", CoreID: "zero"}},
	}, {
		name: "duplicate processor",
		infos: []procfs.CPUInfo{
			{Processor: 0, PhysicalID: "0", CoreID: "0"},
			{Processor: 0, PhysicalID: "0", CoreID: "1"},
		},
	}}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			topo, err := fromCPUInfo(fakeCPUInfo{infos: tc.infos, err: tc.err})
			assert.Error(t, err)
			assert.Nil(t, topo)
		})
	}
}

func TestNewWithoutSiblings(t *testing.T) {
	topo, err := New([]CPU{
		{HyperthreadID: 0, CoreID: 0, SocketID: 0},
		{HyperthreadID: 1, CoreID: 1, SocketID: 0},
	})
	require.NoError(t, err)

	for _, c := range topo.CPUs() {
		assert.Equal(t, NoSibling, c.SiblingID)
	}
	assert.Equal(t, 1, topo.SocketCount())
	assert.Equal(t, 2, topo.PhysicalCoreCount())
}

func TestNewRemapsSparseSockets(t *testing.T) {
	topo, err := New([]CPU{
		{HyperthreadID: 0, CoreID: 0, SocketID: 3},
		{HyperthreadID: 1, CoreID: 0, SocketID: 7},
	})
	require.NoError(t, err)

	s, ok := topo.SocketOf(1)
	assert.True(t, ok)
	assert.Equal(t, 1, s)

	_, ok = topo.SocketOf(5)
	assert.False(t, ok)
}

func TestEmptyTopology(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyTopology)
}

func TestFromGHWInfo(t *testing.T) {
	info := &cpu.Info{
		Processors: []*cpu.Processor{{
			ID: 0,
			Cores: []*cpu.ProcessorCore{
				{ID: 0, LogicalProcessors: []int{0, 2}},
			},
		}, {
			ID: 1,
			Cores: []*cpu.ProcessorCore{
				{ID: 0, LogicalProcessors: []int{1, 3}},
			},
		}},
	}

	topo, err := fromGHWInfo(info)
	require.NoError(t, err)
	assert.Equal(t, 4, topo.HyperthreadCount())
	assert.Equal(t, 2, topo.SocketCount())
	assert.Equal(t, 2, topo.CPUs()[0].SiblingID)
}

func TestWireFormat(t *testing.T) {
	topo, err := fromCPUInfo(fakeCPUInfo{infos: twoSocketInfo()})
	require.NoError(t, err)

	wire := topo.WireFormat()
	require.Len(t, wire, 4)
	assert.Equal(t, WireRecord{HyperthreadID: 3, SiblingID: 1, CoreID: 0, SocketID: 1}, wire[3])

	single, err := New([]CPU{{HyperthreadID: 0}})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), single.WireFormat()[0].SiblingID)
}

func TestChrootFor(t *testing.T) {
	assert.Equal(t, "/host", chrootFor("/host/proc"))
	assert.Equal(t, "/host", chrootFor("/host/proc/"))
	assert.Equal(t, "", chrootFor("/proc"))
	assert.Equal(t, "", chrootFor("/tmp/fake"))
}

func TestLoadUnknownSource(t *testing.T) {
	_, err := Load("magic", "/proc")
	assert.ErrorContains(t, err, "unknown topology source")
}
