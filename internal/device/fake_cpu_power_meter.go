// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
)

// NOTE: This fake meter is not intended to be used in production and is for testing only
var defaultFakeZones = []Zone{ZonePackage, ZoneCore, ZoneDRAM}

const defaultRaplPath = "/sys/class/powercap"

// fakeEnergyZone implements the EnergyZone interface
type fakeEnergyZone struct {
	name      string
	index     int
	path      string
	energy    Energy
	maxEnergy Energy
	mu        sync.Mutex

	increment    Energy
	randomFactor float64
}

var _ EnergyZone = (*fakeEnergyZone)(nil)

func (z *fakeEnergyZone) Name() string {
	return z.name
}

func (z *fakeEnergyZone) Index() int {
	return z.index
}

func (z *fakeEnergyZone) Path() string {
	return z.path
}

// Energy advances the register by a jittered increment on every read
func (z *fakeEnergyZone) Energy() (Energy, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	jitter := Energy(rand.Float64() * float64(z.increment) * z.randomFactor)
	z.energy = (z.energy + z.increment + jitter) % z.maxEnergy

	return z.energy, nil
}

func (z *fakeEnergyZone) MaxEnergy() Energy {
	return z.maxEnergy
}

// fakeRaplMeter implements the CPUPowerMeter interface
type fakeRaplMeter struct {
	logger *slog.Logger
	zones  []EnergyZone
}

var _ CPUPowerMeter = (*fakeRaplMeter)(nil)

// FakeOptFn is a functional option for configuring fakeRaplMeter
type FakeOptFn func(*fakeRaplMeter)

// WithFakeMaxEnergy sets the wrap boundary of every fake register
func WithFakeMaxEnergy(e Energy) FakeOptFn {
	return func(m *fakeRaplMeter) {
		for _, z := range m.zones {
			if fz, ok := z.(*fakeEnergyZone); ok {
				fz.maxEnergy = e
			}
		}
	}
}

func WithFakeLogger(l *slog.Logger) FakeOptFn {
	return func(m *fakeRaplMeter) {
		m.logger = l.With("meter", m.Name())
	}
}

// NewFakeCPUMeter creates a fake meter exposing the given domains on every
// socket, laid out like the powercap tree
func NewFakeCPUMeter(sockets int, zones []string, opts ...FakeOptFn) (CPUPowerMeter, error) {
	if sockets <= 0 {
		return nil, fmt.Errorf("invalid socket count %d", sockets)
	}
	if len(zones) == 0 {
		zones = defaultFakeZones
	}

	meter := &fakeRaplMeter{
		logger: slog.Default().With("meter", "fake-cpu-meter"),
	}

	// µJ per read, roughly a few watts at a 1s window
	increments := map[Zone]Energy{
		ZonePackage: 12 * Joule,
		ZoneCore:    8 * Joule,
		ZoneDRAM:    3 * Joule,
	}

	for socket := 0; socket < sockets; socket++ {
		pkgDir := fmt.Sprintf("intel-rapl:%d", socket)
		sub := 0
		for _, name := range zones {
			dir := pkgDir
			if name != ZonePackage {
				dir = fmt.Sprintf("%s:%d", pkgDir, sub)
				sub++
			}
			inc, ok := increments[name]
			if !ok {
				inc = Joule
			}
			meter.zones = append(meter.zones, &fakeEnergyZone{
				name:         name,
				index:        socket,
				path:         filepath.Join(defaultRaplPath, dir),
				maxEnergy:    RegisterModulus,
				increment:    inc,
				randomFactor: 0.5,
			})
		}
	}

	for _, opt := range opts {
		opt(meter)
	}

	return meter, nil
}

func (m *fakeRaplMeter) Name() string {
	return "fake-cpu-meter"
}

func (m *fakeRaplMeter) Init() error {
	m.logger.Warn("Using fake CPU power meter; readings are synthetic")
	return nil
}

func (m *fakeRaplMeter) Zones() ([]EnergyZone, error) {
	return m.zones, nil
}
