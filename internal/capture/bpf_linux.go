// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"github.com/deepmon/deepmon/internal/topology"
	"golang.org/x/sys/unix"
)

// bpfObjects are the maps and programs of the capture object file
type bpfObjects struct {
	Processors       *ebpf.Map `ebpf:"processors"`
	Pids             *ebpf.Map `ebpf:"pids"`
	Idles            *ebpf.Map `ebpf:"idles"`
	Conf             *ebpf.Map `ebpf:"conf"`
	GlobalTimestamps *ebpf.Map `ebpf:"global_timestamps"`

	CyclesCore   *ebpf.Map `ebpf:"cycles_core"`
	CyclesThread *ebpf.Map `ebpf:"cycles_thread"`
	InstrThread  *ebpf.Map `ebpf:"instr_thread"`
	CacheMisses  *ebpf.Map `ebpf:"cache_misses"`
	CacheRefs    *ebpf.Map `ebpf:"cache_refs"`

	TraceSwitch *ebpf.Program `ebpf:"trace_switch"`
	TraceExit   *ebpf.Program `ebpf:"trace_exit"`
}

func (o *bpfObjects) Close() {
	for _, c := range []interface{ Close() error }{
		o.Processors, o.Pids, o.Idles, o.Conf, o.GlobalTimestamps,
		o.CyclesCore, o.CyclesThread, o.InstrThread, o.CacheMisses, o.CacheRefs,
		o.TraceSwitch, o.TraceExit,
	} {
		if c != nil {
			_ = c.Close()
		}
	}
}

// BPFSource loads a prebuilt capture object and reads its maps
type BPFSource struct {
	logger     *slog.Logger
	objectPath string
	pinPath    string

	mu         sync.Mutex
	objs       *bpfObjects
	switchLink link.Link
	exitLink   link.Link
	perfEvents *perfEvents
}

var _ Source = (*BPFSource)(nil)

type BPFOptFn func(*BPFSource)

func WithBPFLogger(l *slog.Logger) BPFOptFn {
	return func(s *BPFSource) {
		s.logger = l.With("source", "bpf")
	}
}

// WithPinPath pins the capture maps below path, which must be on a bpffs mount
func WithPinPath(path string) BPFOptFn {
	return func(s *BPFSource) {
		s.pinPath = path
	}
}

func NewBPFSource(objectPath string, opts ...BPFOptFn) *BPFSource {
	s := &BPFSource{
		logger:     slog.Default().With("source", "bpf"),
		objectPath: objectPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BPFSource) Name() string {
	return "bpf"
}

func (s *BPFSource) Attach(ctx context.Context, topo *topology.Topology, timesliceNS uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.objs != nil {
		return fmt.Errorf("%s source already attached", s.Name())
	}
	if timesliceNS > math.MaxUint32 {
		return fmt.Errorf("timeslice %d does not fit the conf map", timesliceNS)
	}

	// Remove resource limits for kernels <5.11.
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("error removing memlock: %w", err)
	}
	if s.pinPath != "" {
		if err := checkBPFFS(s.pinPath); err != nil {
			return err
		}
	}

	spec, err := ebpf.LoadCollectionSpec(s.objectPath)
	if err != nil {
		return fmt.Errorf("error loading eBPF specs from %s: %w", s.objectPath, err)
	}

	numCPU := uint32(topo.HyperthreadCount())
	for name, m := range spec.Maps {
		if m.Type == ebpf.PerfEventArray || name == "processors" || name == "idles" {
			m.MaxEntries = numCPU
		}
	}
	if v, ok := spec.Variables["NUM_SOCKETS"]; ok {
		if err := v.Set(uint32(topo.SocketCount())); err != nil {
			return fmt.Errorf("error setting NUM_SOCKETS: %w", err)
		}
	}

	objs := &bpfObjects{}
	opts := &ebpf.CollectionOptions{Maps: ebpf.MapOptions{PinPath: s.pinPath}}
	if err := spec.LoadAndAssign(objs, opts); err != nil {
		return fmt.Errorf("error loading eBPF objects: %w", err)
	}
	defer func() {
		if err != nil {
			s.teardown(objs)
		}
	}()

	for ht, rec := range topo.WireFormat() {
		if err = objs.Processors.Update(ht, rec, ebpf.UpdateAny); err != nil {
			return fmt.Errorf("failed to write topology for cpu %d: %w", ht, err)
		}
	}
	for key, val := range map[uint32]uint32{
		confSelector:    0,
		confOldSelector: 0,
		confTimeslice:   uint32(timesliceNS),
		confSwitchCount: 0,
	} {
		if err = objs.Conf.Update(int32(key), val, ebpf.UpdateAny); err != nil {
			return fmt.Errorf("failed to initialize conf key %d: %w", key, err)
		}
	}

	s.perfEvents, err = openPerfEvents(objs, int(numCPU))
	if err != nil {
		return fmt.Errorf("failed to open perf events: %w", err)
	}

	s.switchLink, err = link.Tracepoint("sched", "sched_switch", objs.TraceSwitch, nil)
	if err != nil {
		return fmt.Errorf("error attaching sched_switch tracepoint: %w", err)
	}
	s.exitLink, err = link.Tracepoint("sched", "sched_process_exit", objs.TraceExit, nil)
	if err != nil {
		return fmt.Errorf("error attaching sched_process_exit tracepoint: %w", err)
	}

	s.objs = objs
	s.logger.Info("Capture attached", "object", s.objectPath, "cpus", numCPU, "sockets", topo.SocketCount())
	return nil
}

func (s *BPFSource) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.objs == nil {
		return nil
	}
	s.teardown(s.objs)
	s.objs = nil
	s.logger.Info("Capture detached")
	return nil
}

// teardown releases links first so the programs stop writing before the
// maps go away
func (s *BPFSource) teardown(objs *bpfObjects) {
	if s.switchLink != nil {
		_ = s.switchLink.Close()
		s.switchLink = nil
	}
	if s.exitLink != nil {
		_ = s.exitLink.Close()
		s.exitLink = nil
	}
	if s.perfEvents != nil {
		s.perfEvents.close()
		s.perfEvents = nil
	}
	objs.Close()
}

func (s *BPFSource) attached() (*bpfObjects, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objs == nil {
		return nil, ErrNotAttached
	}
	return s.objs, nil
}

func (s *BPFSource) ReadThreadTable() ([]RawThreadRecord, error) {
	objs, err := s.attached()
	if err != nil {
		return nil, err
	}

	var (
		key int32
		val pidStatus
		out []RawThreadRecord
	)
	iter := objs.Pids.Iterate()
	for iter.Next(&key, &val) {
		out = append(out, val.RawThreadRecord)
		val = pidStatus{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pids: %w", err)
	}
	return out, nil
}

func (s *BPFSource) ReadIdleTable() ([]RawThreadRecord, error) {
	objs, err := s.attached()
	if err != nil {
		return nil, err
	}

	var (
		key uint64
		val pidStatus
		out []RawThreadRecord
	)
	iter := objs.Idles.Iterate()
	for iter.Next(&key, &val) {
		rec := val.RawThreadRecord
		rec.ID = int32(key)
		out = append(out, rec)
		val = pidStatus{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate idles: %w", err)
	}
	return out, nil
}

func (s *BPFSource) ReadMaxTimestamp(selector uint32) (uint64, error) {
	if selector >= SelectorSlots {
		return 0, ErrInvalidSelector
	}
	objs, err := s.attached()
	if err != nil {
		return 0, err
	}
	var ts uint64
	if err := objs.GlobalTimestamps.Lookup(selector, &ts); err != nil {
		return 0, fmt.Errorf("failed to read max timestamp: %w", err)
	}
	return ts, nil
}

func (s *BPFSource) ReadSwitchCount() (uint64, error) {
	objs, err := s.attached()
	if err != nil {
		return 0, err
	}
	var count uint32
	if err := objs.Conf.Lookup(int32(confSwitchCount), &count); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read switch count: %w", err)
	}
	return uint64(count), nil
}

func (s *BPFSource) WriteSelector(selector uint32) error {
	if selector >= SelectorSlots {
		return ErrInvalidSelector
	}
	objs, err := s.attached()
	if err != nil {
		return err
	}
	// a map update is a syscall, the program observes it on its next lookup
	if err := objs.Conf.Update(int32(confSelector), selector, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("failed to publish selector: %w", err)
	}
	return nil
}

func (s *BPFSource) WriteTimeslice(ns uint64) error {
	if ns > math.MaxUint32 {
		return fmt.Errorf("timeslice %d does not fit the conf map", ns)
	}
	objs, err := s.attached()
	if err != nil {
		return err
	}
	if err := objs.Conf.Update(int32(confTimeslice), uint32(ns), ebpf.UpdateAny); err != nil {
		return fmt.Errorf("failed to write timeslice: %w", err)
	}
	return nil
}

func checkBPFFS(path string) error {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return fmt.Errorf("failed to stat pin path %s: %w", path, err)
	}
	if uint32(st.Type) != uint32(unix.BPF_FS_MAGIC) {
		return fmt.Errorf("pin path %s is not on a bpf filesystem", path)
	}
	return nil
}
