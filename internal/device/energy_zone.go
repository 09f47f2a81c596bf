// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"path/filepath"
	"regexp"
	"strconv"
)

// Zone is a RAPL power domain
type Zone = string

const (
	ZonePackage Zone = "package"
	ZoneCore    Zone = "core"
	ZoneDRAM    Zone = "dram"
)

// Domains are the power domains sampled per socket, in reporting order
var Domains = []Zone{ZonePackage, ZoneCore, ZoneDRAM}

// EnergyZone is a single energy register exposed by a power meter, e.g. the
// package or dram domain of one socket.
type EnergyZone interface {
	// Name returns the domain name
	Name() string

	// Index returns the index of the zone among zones with the same name
	Index() int

	// Path returns the path from which the energy value is read
	Path() string

	// Energy returns the current register value
	Energy() (Energy, error)

	// MaxEnergy returns the value at which Energy wraps back to zero
	MaxEnergy() Energy
}

// ZoneKey identifies a domain register of a socket
type ZoneKey struct {
	Domain Zone
	Socket int
}

// powercap names the per-package zones intel-rapl:<socket> and their
// sub-zones intel-rapl:<socket>:<n>
var raplDirPattern = regexp.MustCompile(`^intel-rapl:(\d+)(?::\d+)?$`)

// socketOf returns the socket of a zone, derived from its powercap path when
// possible and from its index otherwise
func socketOf(z EnergyZone) int {
	if m := raplDirPattern.FindStringSubmatch(filepath.Base(z.Path())); m != nil {
		if socket, err := strconv.Atoi(m[1]); err == nil {
			return socket
		}
	}
	return z.Index()
}

// CPUPowerMeter is a source of per socket RAPL energy zones
type CPUPowerMeter interface {
	powerMeter

	// Init verifies that the zones can be read
	Init() error

	// Zones returns the energy zones
	Zones() ([]EnergyZone, error)
}
