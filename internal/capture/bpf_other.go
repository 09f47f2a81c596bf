// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package capture

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deepmon/deepmon/internal/topology"
)

var errUnsupported = errors.New("bpf capture is only supported on linux")

// BPFSource is unavailable on this platform
type BPFSource struct{}

var _ Source = (*BPFSource)(nil)

type BPFOptFn func(*BPFSource)

func WithBPFLogger(_ *slog.Logger) BPFOptFn { return func(*BPFSource) {} }

func WithPinPath(_ string) BPFOptFn { return func(*BPFSource) {} }

func NewBPFSource(_ string, _ ...BPFOptFn) *BPFSource {
	return &BPFSource{}
}

func (s *BPFSource) Name() string { return "bpf" }

func (s *BPFSource) Attach(context.Context, *topology.Topology, uint64) error {
	return errUnsupported
}

func (s *BPFSource) Detach() error { return nil }

func (s *BPFSource) ReadThreadTable() ([]RawThreadRecord, error) { return nil, ErrNotAttached }

func (s *BPFSource) ReadIdleTable() ([]RawThreadRecord, error) { return nil, ErrNotAttached }

func (s *BPFSource) ReadMaxTimestamp(uint32) (uint64, error) { return 0, ErrNotAttached }

func (s *BPFSource) ReadSwitchCount() (uint64, error) { return 0, ErrNotAttached }

func (s *BPFSource) WriteSelector(uint32) error { return ErrNotAttached }

func (s *BPFSource) WriteTimeslice(uint64) error { return ErrNotAttached }
