// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package capture

import (
	"fmt"
	"unsafe"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
)

// raw event encodings for unhalted core cycles (any thread), unhalted thread
// cycles and retired instructions
const (
	rawCyclesCore   = 0x73003c
	rawCyclesThread = 0x53003c
	rawInstrThread  = 0x5300c0
)

type perfCounter struct {
	name   string
	typ    uint32
	config uint64
	array  *ebpf.Map
}

// perfEvents holds the per-CPU counter fds installed in the perf event arrays
type perfEvents struct {
	fds []int
}

func (p *perfEvents) close() {
	for _, fd := range p.fds {
		_ = unix.Close(fd)
	}
	p.fds = nil
}

func openPerfEvents(objs *bpfObjects, numCPU int) (*perfEvents, error) {
	counters := []perfCounter{
		{"cycles_core", unix.PERF_TYPE_RAW, rawCyclesCore, objs.CyclesCore},
		{"cycles_thread", unix.PERF_TYPE_RAW, rawCyclesThread, objs.CyclesThread},
		{"instr_thread", unix.PERF_TYPE_RAW, rawInstrThread, objs.InstrThread},
		{"cache_misses", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_MISSES, objs.CacheMisses},
		{"cache_refs", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_REFERENCES, objs.CacheRefs},
	}

	pe := &perfEvents{}
	for _, c := range counters {
		for cpu := 0; cpu < numCPU; cpu++ {
			attr := unix.PerfEventAttr{
				Type:   c.typ,
				Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
				Config: c.config,
			}
			fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
			if err != nil {
				pe.close()
				return nil, fmt.Errorf("failed to open %s on cpu %d: %w", c.name, cpu, err)
			}
			pe.fds = append(pe.fds, fd)
			if err := c.array.Update(uint32(cpu), uint32(fd), ebpf.UpdateAny); err != nil {
				pe.close()
				return nil, fmt.Errorf("failed to install %s fd for cpu %d: %w", c.name, cpu, err)
			}
		}
	}
	return pe, nil
}
