// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"fmt"
	"sync/atomic"
	"time"
)

// WindowMode selects how the timeslice evolves between ticks
type WindowMode string

const (
	// WindowDynamic shortens the window as the scheduler gets busier
	WindowDynamic WindowMode = "dynamic"
	// WindowFixed keeps the configured timeslice
	WindowFixed WindowMode = "fixed"
)

const DefaultTimeslice = time.Second

// switch rate bands, in switches per hyperthread per second
var windowBands = []struct {
	below  float64
	window time.Duration
}{
	{100, 4 * time.Second},
	{200, 3 * time.Second},
	{300, 2 * time.Second},
}

const busiestWindow = time.Second

// WindowForRate maps a scheduler switch rate to a timeslice
func WindowForRate(rate float64) time.Duration {
	for _, b := range windowBands {
		if rate < b.below {
			return b.window
		}
	}
	return busiestWindow
}

// SwitchRate returns the switches per hyperthread per second observed over a
// window of the given length
func SwitchRate(switches uint64, hyperthreads int, window time.Duration) float64 {
	if hyperthreads <= 0 || window <= 0 {
		return 0
	}
	return float64(switches) / float64(hyperthreads) / window.Seconds()
}

// WindowController owns the timeslice and the double buffer selector. The
// selector is read by the capture side through WriteSelector; Flip and
// Selector use sequentially consistent atomics so a published flip is never
// reordered before the reads of the vacated half.
type WindowController struct {
	mode      WindowMode
	timeslice atomic.Int64
	selector  atomic.Uint32
}

// NewWindowController returns a controller starting at initial. In fixed
// mode initial is kept for the lifetime of the controller.
func NewWindowController(mode WindowMode, initial time.Duration) (*WindowController, error) {
	switch mode {
	case WindowDynamic, WindowFixed:
	default:
		return nil, fmt.Errorf("unknown window mode %q", mode)
	}
	if initial <= 0 {
		return nil, fmt.Errorf("timeslice must be positive, got %s", initial)
	}

	w := &WindowController{mode: mode}
	w.timeslice.Store(int64(initial))
	return w, nil
}

// FixedTimeslice converts a sampling frequency in Hz to a timeslice
func FixedTimeslice(hz float64) (time.Duration, error) {
	if hz <= 0 {
		return 0, fmt.Errorf("frequency must be positive, got %v", hz)
	}
	return time.Duration(float64(time.Second) / hz), nil
}

func (w *WindowController) Mode() WindowMode {
	return w.mode
}

// Timeslice returns the current window length
func (w *WindowController) Timeslice() time.Duration {
	return time.Duration(w.timeslice.Load())
}

// Selector returns the buffer half the producer should write
func (w *WindowController) Selector() uint32 {
	return w.selector.Load()
}

// Flip alternates the selector and returns the half just vacated by the
// producer, which is the one to read
func (w *WindowController) Flip() uint32 {
	for {
		old := w.selector.Load()
		if w.selector.CompareAndSwap(old, old^1) {
			return old
		}
	}
}

// Restore undoes a flip whose publication failed
func (w *WindowController) Restore(read uint32) {
	w.selector.Store(read)
}

// ComputeNextWindow derives the next timeslice from the switches observed
// during the current window. Fixed mode always returns the configured value.
func (w *WindowController) ComputeNextWindow(switches uint64, hyperthreads int) time.Duration {
	if w.mode == WindowFixed {
		return w.Timeslice()
	}
	next := WindowForRate(SwitchRate(switches, hyperthreads, w.Timeslice()))
	w.timeslice.Store(int64(next))
	return next
}
