// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

// powerMeter is implemented by every energy source
type powerMeter interface {
	// Name identifies the meter in logs
	Name() string
}
