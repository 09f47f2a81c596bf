// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeCPUMeter(t *testing.T) {
	meter, err := NewFakeCPUMeter(2, nil)
	require.NoError(t, err)
	assert.Equal(t, "fake-cpu-meter", meter.Name())
	require.NoError(t, meter.Init())

	zones, err := meter.Zones()
	require.NoError(t, err)
	require.Len(t, zones, 2*len(Domains))

	keys := map[ZoneKey]bool{}
	for _, z := range zones {
		keys[ZoneKey{Domain: z.Name(), Socket: socketOf(z)}] = true
	}
	for s := range 2 {
		for _, d := range Domains {
			assert.True(t, keys[ZoneKey{Domain: d, Socket: s}], "missing %s on socket %d", d, s)
		}
	}
}

func TestFakeCPUMeterEnergyIncreases(t *testing.T) {
	meter, err := NewFakeCPUMeter(1, []string{ZonePackage})
	require.NoError(t, err)
	zones, err := meter.Zones()
	require.NoError(t, err)
	require.Len(t, zones, 1)

	first, err := zones[0].Energy()
	require.NoError(t, err)
	second, err := zones[0].Energy()
	require.NoError(t, err)
	assert.Greater(t, second, first)
	assert.Equal(t, RegisterModulus, zones[0].MaxEnergy())
}

func TestFakeCPUMeterWraps(t *testing.T) {
	meter, err := NewFakeCPUMeter(1, []string{ZoneDRAM}, WithFakeMaxEnergy(5*Joule))
	require.NoError(t, err)
	zones, err := meter.Zones()
	require.NoError(t, err)

	for range 10 {
		e, err := zones[0].Energy()
		require.NoError(t, err)
		assert.Less(t, e, 5*Joule)
	}
}

func TestFakeCPUMeterInvalidSockets(t *testing.T) {
	_, err := NewFakeCPUMeter(0, nil)
	assert.Error(t, err)
}
