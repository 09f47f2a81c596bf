// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture provides access to the kernel-side per-thread counter
// tables. The tables are double buffered: the producer writes the slot named
// by the published selector while the reader consumes the other one.
package capture

import (
	"context"
	"errors"

	"github.com/deepmon/deepmon/internal/topology"
)

// SelectorSlots is the number of buffer halves
const SelectorSlots = 2

// conf map keys shared with the capture program
const (
	confSelector    uint32 = 0
	confOldSelector uint32 = 1
	confTimeslice   uint32 = 2
	confSwitchCount uint32 = 3
)

var (
	ErrNotAttached     = errors.New("capture source is not attached")
	ErrInvalidSelector = errors.New("selector must be 0 or 1")
)

// SocketCounter is the weighted cycle count and last update timestamp a
// thread accumulated on one socket
type SocketCounter struct {
	WeightedCycles uint64
	TS             uint64
}

// SlotCounters are the cumulative counters of one selector slot
type SlotCounters struct {
	Cycles       uint64
	Instructions uint64
	CacheMisses  uint64
	CacheRefs    uint64
	TimeNS       uint64

	// Sockets is indexed by socket
	Sockets []SocketCounter
}

// RawThreadRecord is a thread or idle slot entry of the counter tables. For
// idle records ID is the per-CPU idle slot index.
type RawThreadRecord struct {
	ID   int32
	TGID int32
	Comm string

	Slots [SelectorSlots]SlotCounters
}

// Slot returns the counters of the given selector
func (r *RawThreadRecord) Slot(selector uint32) *SlotCounters {
	return &r.Slots[selector&1]
}

// Source is the reader side of the kernel capture mechanism
type Source interface {
	// Name identifies the source in logs
	Name() string

	// Attach starts capturing on every CPU of topo using the given window
	Attach(ctx context.Context, topo *topology.Topology, timesliceNS uint64) error

	// Detach stops capturing and releases kernel resources; safe to call
	// more than once
	Detach() error

	ReadThreadTable() ([]RawThreadRecord, error)
	ReadIdleTable() ([]RawThreadRecord, error)

	// ReadMaxTimestamp returns the latest timestamp written with selector
	ReadMaxTimestamp(selector uint32) (uint64, error)

	// ReadSwitchCount returns the scheduler switches seen since the last flip
	ReadSwitchCount() (uint64, error)

	// WriteSelector publishes the slot the producer writes next
	WriteSelector(selector uint32) error

	WriteTimeslice(ns uint64) error
}
