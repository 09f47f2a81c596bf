// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/procfs/sysfs"
)

// raplPowerMeter implements CPUPowerMeter using the powercap sysfs interface
type raplPowerMeter struct {
	reader      sysfsReader
	cachedZones []EnergyZone
	logger      *slog.Logger
	zoneFilter  []string
}

type OptionFn func(*raplPowerMeter)

// sysfsReader abstracts the sysfs filesystem for testing
type sysfsReader interface {
	Zones() ([]EnergyZone, error)
}

// WithSysFSReader sets the sysfsReader used by raplPowerMeter
func WithSysFSReader(r sysfsReader) OptionFn {
	return func(pm *raplPowerMeter) {
		pm.reader = r
	}
}

// WithRaplLogger sets the logger for raplPowerMeter
func WithRaplLogger(logger *slog.Logger) OptionFn {
	return func(pm *raplPowerMeter) {
		pm.logger = logger.With("service", "rapl")
	}
}

// WithZoneFilter restricts the domains read; empty means all
func WithZoneFilter(zones []string) OptionFn {
	return func(pm *raplPowerMeter) {
		pm.zoneFilter = zones
	}
}

// NewCPUPowerMeter creates a RAPL meter reading from sysfsPath
func NewCPUPowerMeter(sysfsPath string, opts ...OptionFn) (*raplPowerMeter, error) {
	fs, err := sysfs.NewFS(sysfsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create sysfs filesystem: %w", err)
	}

	ret := &raplPowerMeter{
		reader:     sysfsRaplReader{fs: fs},
		logger:     slog.Default().With("service", "rapl"),
		zoneFilter: []string{},
	}

	for _, opt := range opts {
		opt(ret)
	}

	return ret, nil
}

// Name returns the meter name used in logs
func (r *raplPowerMeter) Name() string {
	return "rapl"
}

// Init discovers the zones and verifies the first one can be read
func (r *raplPowerMeter) Init() error {
	zones, err := r.Zones()
	if err != nil {
		return err
	}

	_, err = zones[0].Energy()
	return err
}

// filterZones applies the configured zone filter, matching names case
// insensitively. An empty filter returns every zone.
func (r *raplPowerMeter) filterZones(zones []EnergyZone) []EnergyZone {
	if len(r.zoneFilter) == 0 {
		return zones
	}

	wanted := make(map[string]bool, len(r.zoneFilter))
	for _, name := range r.zoneFilter {
		wanted[strings.ToLower(name)] = true
	}
	var included, excluded []string
	filtered := make([]EnergyZone, 0, len(zones))
	for _, zone := range zones {
		if wanted[strings.ToLower(zone.Name())] {
			filtered = append(filtered, zone)
			included = append(included, zone.Name())
		} else {
			excluded = append(excluded, zone.Name())
		}
	}
	r.logger.Debug("Filtered RAPL zones", "included", included, "excluded", excluded)
	return filtered
}

// Zones returns the filtered zones, one per socket and domain. The result is
// cached after the first successful read.
func (r *raplPowerMeter) Zones() ([]EnergyZone, error) {
	if len(r.cachedZones) != 0 {
		return r.cachedZones, nil
	}

	zones, err := r.reader.Zones()
	if err != nil {
		return nil, err
	} else if len(zones) == 0 {
		return nil, fmt.Errorf("no RAPL zones found")
	}

	zones = r.filterZones(zones)
	if len(zones) == 0 {
		return nil, fmt.Errorf("no RAPL zones found after filtering")
	}

	// mmio zones duplicate the msr backed ones; keep one per socket and domain
	byKey := map[ZoneKey]EnergyZone{}
	order := []ZoneKey{}
	for _, zone := range zones {
		key := ZoneKey{Domain: zone.Name(), Socket: socketOf(zone)}
		existing, exists := byKey[key]
		if !exists {
			order = append(order, key)
		} else if isStandardRaplPath(existing.Path()) {
			continue
		}
		byKey[key] = zone
	}

	r.cachedZones = make([]EnergyZone, 0, len(order))
	for _, key := range order {
		r.cachedZones = append(r.cachedZones, byKey[key])
	}
	return r.cachedZones, nil
}

// isStandardRaplPath reports whether path is an msr backed intel-rapl zone
func isStandardRaplPath(path string) bool {
	return strings.Contains(path, "/intel-rapl:")
}

// sysfsRaplReader reads zones from the powercap tree of a sysfs mount
type sysfsRaplReader struct {
	fs sysfs.FS
}

// Zones returns every RAPL zone found under class/powercap
func (r sysfsRaplReader) Zones() ([]EnergyZone, error) {
	raplZones, err := sysfs.GetRaplZones(r.fs)
	if err != nil {
		return nil, fmt.Errorf("failed to read rapl zones: %w", err)
	}

	energyZones := make([]EnergyZone, 0, len(raplZones))
	for _, zone := range raplZones {
		energyZones = append(energyZones, sysfsRaplZone{zone})
	}
	return energyZones, nil
}

// sysfsRaplZone implements EnergyZone using sysfs.RaplZone
type sysfsRaplZone struct {
	zone sysfs.RaplZone
}

// Name returns the domain name of the zone
func (s sysfsRaplZone) Name() string {
	return s.zone.Name
}

// Index returns the index of the zone
func (s sysfsRaplZone) Index() int {
	return s.zone.Index
}

// Path returns the sysfs directory of the zone
func (s sysfsRaplZone) Path() string {
	return s.zone.Path
}

// Energy returns the current energy_uj value
func (s sysfsRaplZone) Energy() (Energy, error) {
	uj, err := s.zone.GetEnergyMicrojoules()
	return Energy(uj), err
}

// MaxEnergy returns max_energy_range_uj, the value at which energy_uj wraps
func (s sysfsRaplZone) MaxEnergy() Energy {
	return Energy(s.zone.MaxMicrojoules)
}
