// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

// WireRecord is the per-hyperthread entry of the kernel-side processors map.
// Layout matches the capture program's struct proc_topology; the counter
// fields start at zero and are owned by the program once attached.
type WireRecord struct {
	HyperthreadID          int64
	SiblingID              int64
	CoreID                 int64
	SocketID               int64
	CyclesCore             uint64
	CyclesCoreDeltaSibling uint64
	CyclesThread           uint64
	InstructionThread      uint64
	TS                     uint64
	RunningPID             int32
	_                      [4]byte
}

// WireFormat converts the topology to the records written into the capture
// program's processors map, keyed by hyperthread id.
func (t *Topology) WireFormat() map[uint32]WireRecord {
	out := make(map[uint32]WireRecord, len(t.cpus))
	for _, c := range t.cpus {
		out[uint32(c.HyperthreadID)] = WireRecord{
			HyperthreadID: int64(c.HyperthreadID),
			SiblingID:     int64(c.SiblingID),
			CoreID:        int64(c.CoreID),
			SocketID:      int64(c.SocketID),
		}
	}
	return out
}
