// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	commLen = 16

	// pid, tgid, comm and five u64[2] counter arrays
	pidStatusHeaderSize = 4 + 4 + commLen + 5*SelectorSlots*8

	// weighted_cycles and ts, one u64 per socket per selector
	pidStatusSocketSize = 2 * SelectorSlots * 8
)

// validComm converts a kernel task name to a valid UTF-8 string. Task names
// are arbitrary bytes settable by any process.
func validComm(comm []byte) string {
	return strings.ToValidUTF8(string(comm), "\uFFFD")
}

// pidStatusSize is the size of a pid_status value on a host with the given
// number of sockets
func pidStatusSize(sockets int) int {
	return pidStatusHeaderSize + sockets*pidStatusSocketSize
}

// pidStatus decodes the capture program's struct pid_status:
//
//	s32 pid; s32 tgid; char comm[16];
//	u64 cycles[2]; u64 instructions[2]; u64 cache_misses[2];
//	u64 cache_refs[2]; u64 time_ns[2];
//	u64 weighted_cycles[sockets*2]; u64 ts[sockets*2];
//
// Per socket arrays are indexed socket*2 + selector.
type pidStatus struct {
	RawThreadRecord
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The socket count is
// derived from the value size.
func (p *pidStatus) UnmarshalBinary(data []byte) error {
	extra := len(data) - pidStatusHeaderSize
	if extra <= 0 || extra%pidStatusSocketSize != 0 {
		return fmt.Errorf("invalid pid_status size %d", len(data))
	}
	sockets := extra / pidStatusSocketSize

	le := binary.LittleEndian
	p.ID = int32(le.Uint32(data[0:]))
	p.TGID = int32(le.Uint32(data[4:]))
	comm := data[8 : 8+commLen]
	if i := bytes.IndexByte(comm, 0); i >= 0 {
		comm = comm[:i]
	}
	p.Comm = validComm(comm)

	off := 8 + commLen
	u64s := func(n int) []uint64 {
		out := make([]uint64, n)
		for i := range out {
			out[i] = le.Uint64(data[off:])
			off += 8
		}
		return out
	}

	cycles := u64s(SelectorSlots)
	instructions := u64s(SelectorSlots)
	misses := u64s(SelectorSlots)
	refs := u64s(SelectorSlots)
	timeNS := u64s(SelectorSlots)
	weighted := u64s(sockets * SelectorSlots)
	ts := u64s(sockets * SelectorSlots)

	for sel := 0; sel < SelectorSlots; sel++ {
		slot := SlotCounters{
			Cycles:       cycles[sel],
			Instructions: instructions[sel],
			CacheMisses:  misses[sel],
			CacheRefs:    refs[sel],
			TimeNS:       timeNS[sel],
			Sockets:      make([]SocketCounter, sockets),
		}
		for s := 0; s < sockets; s++ {
			slot.Sockets[s] = SocketCounter{
				WeightedCycles: weighted[s*SelectorSlots+sel],
				TS:             ts[s*SelectorSlots+sel],
			}
		}
		p.Slots[sel] = slot
	}
	return nil
}
