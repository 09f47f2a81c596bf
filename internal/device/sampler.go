// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"sort"

	"k8s.io/utils/clock"
)

// Readings holds one sample per socket and domain taken at a single point
type Readings map[ZoneKey]EnergySample

// Since returns the per socket and domain energy consumed since prev. Keys
// missing from either side are omitted.
func (r Readings) Since(prev Readings) map[ZoneKey]EnergyDiff {
	diffs := make(map[ZoneKey]EnergyDiff, len(r))
	for key, curr := range r {
		p, ok := prev[key]
		if !ok {
			continue
		}
		diffs[key] = Diff(p, curr)
	}
	return diffs
}

// EnergySampler reads the energy registers of every socket and domain
type EnergySampler struct {
	logger *slog.Logger
	meter  CPUPowerMeter
	clock  clock.PassiveClock

	zones map[ZoneKey]EnergyZone
	keys  []ZoneKey
}

type SamplerOptFn func(*EnergySampler)

func WithSamplerLogger(l *slog.Logger) SamplerOptFn {
	return func(s *EnergySampler) {
		s.logger = l.With("service", "energy-sampler")
	}
}

func WithSamplerClock(c clock.PassiveClock) SamplerOptFn {
	return func(s *EnergySampler) {
		s.clock = c
	}
}

func NewEnergySampler(meter CPUPowerMeter, opts ...SamplerOptFn) *EnergySampler {
	s := &EnergySampler{
		logger: slog.Default().With("service", "energy-sampler"),
		meter:  meter,
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init discovers the zones of the meter and maps them to socket and domain
func (s *EnergySampler) Init() error {
	if err := s.meter.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s meter: %w", s.meter.Name(), err)
	}
	zones, err := s.meter.Zones()
	if err != nil {
		return fmt.Errorf("failed to read %s zones: %w", s.meter.Name(), err)
	}

	s.zones = make(map[ZoneKey]EnergyZone, len(zones))
	for _, z := range zones {
		key := ZoneKey{Domain: z.Name(), Socket: socketOf(z)}
		if _, dup := s.zones[key]; dup {
			s.logger.Warn("Ignoring duplicate energy zone", "zone", z.Name(), "socket", key.Socket, "path", z.Path())
			continue
		}
		s.zones[key] = z
		s.keys = append(s.keys, key)
	}
	sort.Slice(s.keys, func(i, j int) bool {
		if s.keys[i].Socket != s.keys[j].Socket {
			return s.keys[i].Socket < s.keys[j].Socket
		}
		return s.keys[i].Domain < s.keys[j].Domain
	})
	s.logger.Info("Energy zones discovered", "meter", s.meter.Name(), "zones", len(s.keys))
	return nil
}

// Keys returns the socket and domain pairs available, ordered by socket
func (s *EnergySampler) Keys() []ZoneKey {
	return s.keys
}

// Sample reads a single register. On a read failure the zero sample is
// returned along with the error.
func (s *EnergySampler) Sample(domain Zone, socket int) (EnergySample, error) {
	z, ok := s.zones[ZoneKey{Domain: domain, Socket: socket}]
	if !ok {
		return EnergySample{}, fmt.Errorf("no %s zone for socket %d", domain, socket)
	}
	e, err := z.Energy()
	if err != nil {
		return EnergySample{}, fmt.Errorf("failed to read %s: %w", z.Path(), err)
	}
	return EnergySample{Energy: e, Timestamp: s.clock.Now(), Max: z.MaxEnergy()}, nil
}

// SampleAll reads every register; failed reads are logged and left out
func (s *EnergySampler) SampleAll() Readings {
	r := make(Readings, len(s.keys))
	for _, key := range s.keys {
		sample, err := s.Sample(key.Domain, key.Socket)
		if err != nil {
			s.logger.Warn("Energy read failed", "domain", key.Domain, "socket", key.Socket, "error", err)
			continue
		}
		r[key] = sample
	}
	return r
}
