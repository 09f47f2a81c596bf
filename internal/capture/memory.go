// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/deepmon/deepmon/internal/topology"
)

// Event is one scheduler switch worth of counters charged to a thread or to
// the idle slot of a CPU
type Event struct {
	ID     int32
	TGID   int32
	Comm   string
	Idle   bool
	Socket int

	Cycles         uint64
	WeightedCycles uint64
	Instructions   uint64
	CacheMisses    uint64
	CacheRefs      uint64
	TimeNS         uint64

	// TS is the monotonic timestamp of the switch in ns
	TS uint64
}

type memoryRecord struct {
	RawThreadRecord
	selector uint32
}

// MemorySource is an in-process Source with the producer semantics of the
// capture program: events accumulate into the published selector slot, a
// record's slot is cleared the first time it is written after a flip, and
// the switch count restarts on every flip.
type MemorySource struct {
	logger *slog.Logger

	mu          sync.Mutex
	attached    bool
	sockets     int
	selector    uint32
	oldSelector uint32
	timeslice   uint64
	switchCount uint64
	maxTS       [SelectorSlots]uint64
	threads     map[int32]*memoryRecord
	idles       map[int32]*memoryRecord

	synthetic bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ Source = (*MemorySource)(nil)

type MemoryOptFn func(*MemorySource)

func WithMemoryLogger(l *slog.Logger) MemoryOptFn {
	return func(m *MemorySource) {
		m.logger = l.With("source", "memory")
	}
}

// WithSyntheticLoad makes the source generate a random workload while attached
func WithSyntheticLoad() MemoryOptFn {
	return func(m *MemorySource) {
		m.synthetic = true
	}
}

func NewMemorySource(opts ...MemoryOptFn) *MemorySource {
	m := &MemorySource{
		logger:  slog.Default().With("source", "memory"),
		threads: map[int32]*memoryRecord{},
		idles:   map[int32]*memoryRecord{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemorySource) Name() string {
	return "memory"
}

func (m *MemorySource) Attach(ctx context.Context, topo *topology.Topology, timesliceNS uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attached {
		return fmt.Errorf("%s source already attached", m.Name())
	}
	m.attached = true
	m.sockets = topo.SocketCount()
	m.timeslice = timesliceNS

	if m.synthetic {
		genCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.done = make(chan struct{})
		go m.generate(genCtx, topo)
	}
	m.logger.Info("Capture attached", "sockets", m.sockets, "timeslice", time.Duration(timesliceNS))
	return nil
}

func (m *MemorySource) Detach() error {
	m.mu.Lock()
	if !m.attached {
		m.mu.Unlock()
		return nil
	}
	m.attached = false
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.logger.Info("Capture detached")
	return nil
}

// Emit charges e to the slot selected by the last published selector
func (m *MemorySource) Emit(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.attached {
		return ErrNotAttached
	}
	if e.Socket < 0 || e.Socket >= m.sockets {
		return fmt.Errorf("invalid socket %d", e.Socket)
	}

	sel := m.selector
	if m.oldSelector != sel {
		m.switchCount = 0
		m.oldSelector = sel
	}
	m.switchCount++

	table := m.threads
	if e.Idle {
		table = m.idles
	}
	rec, ok := table[e.ID]
	if !ok {
		rec = &memoryRecord{selector: sel}
		rec.ID = e.ID
		for i := range rec.Slots {
			rec.Slots[i].Sockets = make([]SocketCounter, m.sockets)
		}
		table[e.ID] = rec
	}
	if rec.selector != sel {
		rec.Slots[sel] = SlotCounters{Sockets: make([]SocketCounter, m.sockets)}
		rec.selector = sel
	}
	rec.TGID = e.TGID
	rec.Comm = validComm([]byte(e.Comm))

	slot := &rec.Slots[sel]
	slot.Cycles += e.Cycles
	slot.Instructions += e.Instructions
	slot.CacheMisses += e.CacheMisses
	slot.CacheRefs += e.CacheRefs
	slot.TimeNS += e.TimeNS
	slot.Sockets[e.Socket].WeightedCycles += e.WeightedCycles
	slot.Sockets[e.Socket].TS = e.TS

	if e.TS > m.maxTS[sel] {
		m.maxTS[sel] = e.TS
	}
	return nil
}

// Put stores a record verbatim, replacing any record with the same id
func (m *MemorySource) Put(idle bool, rec RawThreadRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.threads
	if idle {
		table = m.idles
	}
	stored := cloneRecord(rec)
	stored.Comm = validComm([]byte(rec.Comm))
	table[rec.ID] = &memoryRecord{RawThreadRecord: stored, selector: m.selector}
}

// SetMaxTimestamp overrides the max timestamp cell of a selector
func (m *MemorySource) SetMaxTimestamp(selector uint32, ts uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxTS[selector&1] = ts
}

// SetSwitchCount overrides the switch counter
func (m *MemorySource) SetSwitchCount(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switchCount = n
}

// Selector returns the slot the producer currently writes
func (m *MemorySource) Selector() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selector
}

// Timeslice returns the last published timeslice
func (m *MemorySource) Timeslice() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeslice
}

func (m *MemorySource) ReadThreadTable() ([]RawThreadRecord, error) {
	return m.readTable(false)
}

func (m *MemorySource) ReadIdleTable() ([]RawThreadRecord, error) {
	return m.readTable(true)
}

func (m *MemorySource) readTable(idle bool) ([]RawThreadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.attached {
		return nil, ErrNotAttached
	}
	table := m.threads
	if idle {
		table = m.idles
	}
	out := make([]RawThreadRecord, 0, len(table))
	for _, rec := range table {
		out = append(out, cloneRecord(rec.RawThreadRecord))
	}
	return out, nil
}

func (m *MemorySource) ReadMaxTimestamp(selector uint32) (uint64, error) {
	if selector >= SelectorSlots {
		return 0, ErrInvalidSelector
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return 0, ErrNotAttached
	}
	return m.maxTS[selector], nil
}

func (m *MemorySource) ReadSwitchCount() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return 0, ErrNotAttached
	}
	return m.switchCount, nil
}

func (m *MemorySource) WriteSelector(selector uint32) error {
	if selector >= SelectorSlots {
		return ErrInvalidSelector
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return ErrNotAttached
	}
	m.selector = selector
	return nil
}

func (m *MemorySource) WriteTimeslice(ns uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return ErrNotAttached
	}
	m.timeslice = ns
	return nil
}

func cloneRecord(r RawThreadRecord) RawThreadRecord {
	out := r
	for i := range r.Slots {
		out.Slots[i].Sockets = append([]SocketCounter(nil), r.Slots[i].Sockets...)
	}
	return out
}

// generate emulates a handful of busy threads and per-CPU idle slots
func (m *MemorySource) generate(ctx context.Context, topo *topology.Topology) {
	defer close(m.done)

	const tick = 10 * time.Millisecond
	start := time.Now()
	cpus := topo.CPUs()
	workers := []struct {
		id   int32
		comm string
	}{{1001, "nginx"}, {1002, "postgres"}, {1003, "redis-server"}, {1004, "java"}}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ts := uint64(time.Since(start).Nanoseconds())
		for _, c := range cpus {
			busy := time.Duration(rand.Int63n(int64(tick)))
			w := workers[rand.Intn(len(workers))]
			cycles := uint64(busy.Nanoseconds()) * 3
			_ = m.Emit(Event{
				ID: w.id, TGID: w.id, Comm: w.comm, Socket: c.SocketID,
				Cycles: cycles, WeightedCycles: cycles, Instructions: cycles * 2,
				CacheMisses: cycles / 1000, CacheRefs: cycles / 50,
				TimeNS: uint64(busy.Nanoseconds()), TS: ts,
			})
			idle := tick - busy
			_ = m.Emit(Event{
				ID: int32(c.HyperthreadID), Idle: true, Comm: "swapper", Socket: c.SocketID,
				WeightedCycles: uint64(idle.Nanoseconds()) / 10,
				TimeNS:         uint64(idle.Nanoseconds()), TS: ts,
			})
		}
	}
}
