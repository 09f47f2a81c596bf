// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"
	"sort"
)

// NoSibling marks a hyperthread whose physical core exposes a single logical CPU
const NoSibling = -1

var ErrEmptyTopology = errors.New("no logical cpus found")

// CPU describes a single logical CPU (hyperthread)
type CPU struct {
	HyperthreadID int `json:"hyperthreadId"`
	SiblingID     int `json:"siblingId"`
	CoreID        int `json:"coreId"`
	// SocketID is the dense socket index in [0, SocketCount)
	SocketID int `json:"socketId"`
}

// CPUVendor holds identification data of the host processors
type CPUVendor struct {
	Vendor string
	Brand  string
}

// Topology is the immutable hyperthread/core/socket layout of the host.
type Topology struct {
	cpus    []CPU
	sockets []int
	cores   int
	vendor  CPUVendor
}

// New builds a Topology from cpu records, inferring sibling pairs by
// matching (core, socket). SiblingID of the input is ignored. Socket ids are
// remapped to dense indices ordered by their original value.
func New(cpus []CPU) (*Topology, error) {
	if len(cpus) == 0 {
		return nil, ErrEmptyTopology
	}

	seen := make(map[int]bool, len(cpus))
	rawSockets := map[int]bool{}
	for _, c := range cpus {
		if c.HyperthreadID < 0 || c.CoreID < 0 || c.SocketID < 0 {
			return nil, fmt.Errorf("invalid cpu record %+v: negative id", c)
		}
		if seen[c.HyperthreadID] {
			return nil, fmt.Errorf("duplicate hyperthread id %d", c.HyperthreadID)
		}
		seen[c.HyperthreadID] = true
		rawSockets[c.SocketID] = true
	}

	socketIDs := make([]int, 0, len(rawSockets))
	for s := range rawSockets {
		socketIDs = append(socketIDs, s)
	}
	sort.Ints(socketIDs)
	dense := make(map[int]int, len(socketIDs))
	for i, s := range socketIDs {
		dense[s] = i
	}

	out := make([]CPU, len(cpus))
	for i, c := range cpus {
		out[i] = CPU{
			HyperthreadID: c.HyperthreadID,
			SiblingID:     NoSibling,
			CoreID:        c.CoreID,
			SocketID:      dense[c.SocketID],
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].HyperthreadID < out[j].HyperthreadID
	})

	type coreKey struct{ core, socket int }
	byCore := map[coreKey][]int{}
	for i, c := range out {
		k := coreKey{c.CoreID, c.SocketID}
		byCore[k] = append(byCore[k], i)
	}
	for _, members := range byCore {
		if len(members) < 2 {
			continue
		}
		// pair each hyperthread with the next one on the same core
		for i, idx := range members {
			out[idx].SiblingID = out[members[(i+1)%len(members)]].HyperthreadID
		}
	}

	sockets := make([]int, len(socketIDs))
	for i := range sockets {
		sockets[i] = i
	}

	return &Topology{
		cpus:    out,
		sockets: sockets,
		cores:   len(byCore),
	}, nil
}

// WithVendor returns a copy of t carrying the given vendor information
func (t *Topology) WithVendor(v CPUVendor) *Topology {
	cp := *t
	cp.vendor = v
	return &cp
}

// CPUs returns the logical cpus ordered by hyperthread id
func (t *Topology) CPUs() []CPU {
	out := make([]CPU, len(t.cpus))
	copy(out, t.cpus)
	return out
}

// Sockets returns the dense socket indices
func (t *Topology) Sockets() []int {
	out := make([]int, len(t.sockets))
	copy(out, t.sockets)
	return out
}

func (t *Topology) SocketCount() int {
	return len(t.sockets)
}

// HyperthreadCount is the number of logical CPUs
func (t *Topology) HyperthreadCount() int {
	return len(t.cpus)
}

// PhysicalCoreCount is the number of distinct (core, socket) pairs
func (t *Topology) PhysicalCoreCount() int {
	return t.cores
}

func (t *Topology) Vendor() CPUVendor {
	return t.vendor
}

// SocketOf returns the socket index of the given hyperthread
func (t *Topology) SocketOf(ht int) (int, bool) {
	i := sort.Search(len(t.cpus), func(i int) bool {
		return t.cpus[i].HyperthreadID >= ht
	})
	if i < len(t.cpus) && t.cpus[i].HyperthreadID == ht {
		return t.cpus[i].SocketID, true
	}
	return 0, false
}
