// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

// ApportionPower returns the share of socket power drawn by a thread: the sum
// over sockets of the socket power scaled by the thread's fraction of the
// socket's weighted cycles. Sockets with no weighted cycles contribute nothing.
func ApportionPower(socketPower []Power, threadCycles, totalCycles []uint64) Power {
	var power Power
	for s, total := range totalCycles {
		if total == 0 || s >= len(socketPower) || s >= len(threadCycles) {
			continue
		}
		power += socketPower[s] * Power(float64(threadCycles[s])/float64(total))
	}
	return power
}

// CPUUsage returns the thread time as a percentage of one hyperthread, given
// the execution time of all live entries spread over the hyperthreads
func CPUUsage(timeNS, totalNS uint64, hyperthreads int) float64 {
	if totalNS == 0 {
		return 0
	}
	return float64(timeNS) / float64(totalNS) * float64(hyperthreads) * 100
}
