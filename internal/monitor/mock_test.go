// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/deepmon/deepmon/internal/capture"
	"github.com/deepmon/deepmon/internal/device"
	"github.com/deepmon/deepmon/internal/topology"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSource is a mock implementation of capture.Source
type MockSource struct {
	mock.Mock
}

var _ capture.Source = (*MockSource)(nil)

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Attach(ctx context.Context, topo *topology.Topology, timesliceNS uint64) error {
	args := m.Called(ctx, topo, timesliceNS)
	return args.Error(0)
}

func (m *MockSource) Detach() error {
	return m.Called().Error(0)
}

func (m *MockSource) ReadThreadTable() ([]capture.RawThreadRecord, error) {
	args := m.Called()
	return args.Get(0).([]capture.RawThreadRecord), args.Error(1)
}

func (m *MockSource) ReadIdleTable() ([]capture.RawThreadRecord, error) {
	args := m.Called()
	return args.Get(0).([]capture.RawThreadRecord), args.Error(1)
}

func (m *MockSource) ReadMaxTimestamp(selector uint32) (uint64, error) {
	args := m.Called(selector)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockSource) ReadSwitchCount() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockSource) WriteSelector(selector uint32) error {
	return m.Called(selector).Error(0)
}

func (m *MockSource) WriteTimeslice(ns uint64) error {
	return m.Called(ns).Error(0)
}

// MockResolver is a mock implementation of CgroupResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) CgroupID(pid, tgid int32) string {
	return m.Called(pid, tgid).String(0)
}

// fakeEnergy returns one prepared Readings per call, repeating the last one
type fakeEnergy struct {
	readings []device.Readings
	calls    int
	onSample func()
}

func (f *fakeEnergy) SampleAll() device.Readings {
	if f.onSample != nil {
		f.onSample()
	}
	r := f.readings[min(f.calls, len(f.readings)-1)]
	f.calls++
	return r
}

// coreReadings builds readings of the core domain of each socket
func coreReadings(ts time.Time, energy ...device.Energy) device.Readings {
	r := device.Readings{}
	for s, e := range energy {
		r[device.ZoneKey{Domain: device.ZoneCore, Socket: s}] = device.EnergySample{Energy: e, Timestamp: ts}
	}
	return r
}

// twoByTwo is 2 sockets with 2 hyperthreads each
func twoByTwo(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New([]topology.CPU{
		{HyperthreadID: 0, CoreID: 0, SocketID: 0},
		{HyperthreadID: 1, CoreID: 0, SocketID: 0},
		{HyperthreadID: 2, CoreID: 0, SocketID: 1},
		{HyperthreadID: 3, CoreID: 0, SocketID: 1},
	})
	require.NoError(t, err)
	return topo
}

// rawRecord builds a record whose sel slot holds the given per socket
// weighted cycles, all stamped with ts
func rawRecord(id int32, comm string, sel uint32, timeNS, ts uint64, weighted ...uint64) capture.RawThreadRecord {
	rec := capture.RawThreadRecord{ID: id, TGID: id, Comm: comm}
	for i := range rec.Slots {
		rec.Slots[i].Sockets = make([]capture.SocketCounter, len(weighted))
	}
	slot := rec.Slot(sel)
	slot.TimeNS = timeNS
	slot.Cycles = timeNS
	slot.Instructions = 2 * timeNS
	for s, w := range weighted {
		slot.Sockets[s] = capture.SocketCounter{WeightedCycles: w, TS: ts}
	}
	return rec
}
