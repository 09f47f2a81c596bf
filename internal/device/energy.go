// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
	"time"
)

// Energy is an energy register value or delta in MicroJoules.
type Energy uint64

const (
	MicroJoule Energy = 1
	MilliJoule        = 1000 * MicroJoule
	Joule             = 1000 * MilliJoule
)

// RegisterModulus is the wrap boundary of a 32 bit RAPL energy register
const RegisterModulus Energy = 1 << 32

func (e Energy) MicroJoules() uint64 {
	return uint64(e)
}

func (e Energy) MilliJoules() float64 {
	return float64(e) / float64(MilliJoule)
}

func (e Energy) Joules() float64 {
	return float64(e) / float64(Joule)
}

func (e Energy) String() string {
	return fmt.Sprintf("%.2fJ", e.Joules())
}

// Power is a power draw in MicroWatts.
type Power float64

const (
	MicroWatt Power = 1.0
	MilliWatt       = 1000 * MicroWatt
	Watt            = 1000 * MilliWatt
)

func (p Power) MicroWatts() float64 {
	return float64(p)
}

func (p Power) MilliWatts() float64 {
	return float64(p / MilliWatt)
}

func (p Power) Watts() float64 {
	return float64(p / Watt)
}

func (p Power) String() string {
	return fmt.Sprintf("%.2fW", p.Watts())
}

// ErrZeroElapsed is returned when power is requested over an empty interval
var ErrZeroElapsed = errors.New("elapsed time must be positive")

// EnergySample is a single reading of a monotonic energy register.
type EnergySample struct {
	Energy    Energy
	Timestamp time.Time

	// Max is the register's wrap boundary when the zone reports one;
	// zero means RegisterModulus
	Max Energy
}

func (s EnergySample) modulus() Energy {
	if s.Max > 0 {
		return s.Max
	}
	return RegisterModulus
}

// EnergyDiff is the energy consumed between two samples of the same register
type EnergyDiff struct {
	Energy  Energy
	Elapsed time.Duration
}

// Diff returns the energy consumed between prev and curr. A register value
// going backwards over a positive interval is a wrap and is corrected by the
// register modulus; the result is never negative.
func Diff(prev, curr EnergySample) EnergyDiff {
	elapsed := curr.Timestamp.Sub(prev.Timestamp)

	var delta Energy
	switch {
	case curr.Energy >= prev.Energy:
		delta = curr.Energy - prev.Energy
	case elapsed > 0 && prev.Energy < curr.modulus():
		delta = curr.modulus() - prev.Energy + curr.Energy
	default:
		delta = 0
	}
	return EnergyDiff{Energy: delta, Elapsed: elapsed}
}

// Power is the average power over the diff interval
func (d EnergyDiff) Power() (Power, error) {
	if d.Elapsed <= 0 {
		return 0, ErrZeroElapsed
	}
	// µJ / s = µW
	return Power(float64(d.Energy) / d.Elapsed.Seconds()), nil
}
