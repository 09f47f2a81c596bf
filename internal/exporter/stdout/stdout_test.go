// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deepmon/deepmon/internal/device"
	"github.com/deepmon/deepmon/internal/monitor"
	"github.com/deepmon/deepmon/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

// MockMonitor mocks the Monitor interface
type MockMonitor struct {
	mock.Mock
	data chan struct{}
}

func newMockMonitor() *MockMonitor {
	return &MockMonitor{data: make(chan struct{}, 1)}
}

func (m *MockMonitor) Snapshot() (*monitor.Snapshot, error) {
	args := m.Called()
	if s := args.Get(0); s != nil {
		return s.(*monitor.Snapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMonitor) DataChannel() <-chan struct{} {
	return m.data
}

func (m *MockMonitor) Topology() *topology.Topology {
	return nil
}

// syncBuffer is a goroutine safe WriteCloser
type syncBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testSnapshot() *monitor.Snapshot {
	return &monitor.Snapshot{
		Sample: &monitor.Sample{
			ExecutionTimeNS: 1_500_000_000,
			SwitchCount:     120,
			TimesliceNS:     uint64(3 * time.Second),
			Power: monitor.DomainPower{
				device.ZonePackage: 12 * device.Watt,
				device.ZoneCore:    8 * device.Watt,
				device.ZoneDRAM:    2 * device.Watt,
			},
			Threads: map[int32]*monitor.ThreadInfo{
				42: {PID: 42, TGID: 42, Comm: "redis"},
			},
		},
		Containers: monitor.Containers{
			"abcdef012345": {
				ID:       "abcdef012345",
				Counters: monitor.Counters{Cycles: 1000, Instructions: 1500, CacheMisses: 7},
				Power:    5 * device.Watt,
				CPUUsage: 40,
				Threads:  sets.New[int32](42),
			},
			monitor.IdleContainerID: {
				ID:      monitor.IdleContainerID,
				Power:   1 * device.Watt,
				Threads: sets.New[int32](-1, -2),
			},
		},
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name string
		opts []OptionFn
		out  io.WriteCloser
		top  int
	}{{
		name: "default options",
		opts: []OptionFn{},
		out:  os.Stdout,
	}, {
		name: "custom options",
		opts: []OptionFn{
			WithLogger(slog.Default()),
			WithOutput(os.Stderr),
			WithTop(5),
		},
		out: os.Stderr,
		top: 5,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockMonitor()
			exporter := NewExporter(m, tt.opts...)
			assert.Equal(t, "stdout", exporter.Name())
			assert.NotNil(t, exporter.logger)
			assert.Same(t, m, exporter.monitor)
			assert.Same(t, tt.out, exporter.out)
			assert.Equal(t, tt.top, exporter.top)
		})
	}
}

func TestWriteSample(t *testing.T) {
	buf := bytes.Buffer{}
	writeSample(&buf, testSnapshot().Sample)

	out := buf.String()
	for _, want := range []string{"package", "12.00W", "core", "8.00W", "dram", "2.00W", "1.5s", "3s", "120"} {
		assert.Contains(t, out, want)
	}
}

func TestWriteContainers(t *testing.T) {
	buf := bytes.Buffer{}
	writeContainers(&buf, testSnapshot().Containers, 0)

	out := buf.String()
	assert.Contains(t, out, "abcdef012345")
	assert.Contains(t, out, "5.00W")
	assert.Contains(t, out, "40.00")
	assert.Contains(t, out, "1.50")

	// ordered by power
	assert.Less(t, strings.Index(out, "abcdef012345"), strings.Index(out, monitor.IdleContainerID))
}

func TestWriteContainersTop(t *testing.T) {
	buf := bytes.Buffer{}
	writeContainers(&buf, testSnapshot().Containers, 1)

	out := buf.String()
	assert.Contains(t, out, "abcdef012345")
	assert.NotContains(t, out, monitor.IdleContainerID)
}

func TestExporter_Run(t *testing.T) {
	m := newMockMonitor()
	m.On("Snapshot").Return(testSnapshot(), nil)

	out := &syncBuffer{}
	exporter := NewExporter(m, WithOutput(out))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exporter.Run(ctx) }()

	m.data <- struct{}{}
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "abcdef012345")
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("exporter did not stop")
	}

	require.NoError(t, exporter.Shutdown())
	assert.True(t, out.closed)
	m.AssertExpectations(t)
}

func TestExporter_RunSnapshotError(t *testing.T) {
	m := newMockMonitor()
	called := make(chan struct{})
	var once sync.Once
	m.On("Snapshot").Run(func(mock.Arguments) {
		once.Do(func() { close(called) })
	}).Return(nil, errors.New("no snapshot available yet"))

	out := &syncBuffer{}
	exporter := NewExporter(m, WithOutput(out))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exporter.Run(ctx) }()

	m.data <- struct{}{}
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("snapshot was not read")
	}
	cancel()
	assert.NoError(t, <-done)
	assert.Empty(t, out.String())
}

func TestExporter_ShutdownStdout(t *testing.T) {
	exporter := NewExporter(newMockMonitor())
	assert.NoError(t, exporter.Shutdown())
}
