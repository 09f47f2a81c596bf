// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"strconv"

	"github.com/deepmon/deepmon/internal/topology"
	prom "github.com/prometheus/client_golang/prometheus"
)

// cpuInfoCollector exposes the topology the monitor attributes power with:
// one series per hyperthread with its core, sibling and dense socket index.
// A hyperthread without a sibling reports sibling_id -1.
type cpuInfoCollector struct {
	topo *topology.Topology
	desc *prom.Desc
	info *prom.Desc
}

var _ prom.Collector = (*cpuInfoCollector)(nil)

// NewCPUInfoCollector creates a collector for the given topology
func NewCPUInfoCollector(topo *topology.Topology) *cpuInfoCollector {
	return &cpuInfoCollector{
		topo: topo,
		desc: prom.NewDesc(
			prom.BuildFQName(namespace, "node", "cpu_info"),
			"Hyperthread layout of the host",
			[]string{"processor", "core_id", "sibling_id", "socket_id", "vendor_id", "model_name"},
			nil,
		),
		info: prom.NewDesc(
			prom.BuildFQName(namespace, "node", "sockets"),
			"Number of CPU sockets power is measured for",
			nil, nil,
		),
	}
}

func (c *cpuInfoCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.desc
	ch <- c.info
}

func (c *cpuInfoCollector) Collect(ch chan<- prom.Metric) {
	vendor := c.topo.Vendor()
	for _, cpu := range c.topo.CPUs() {
		ch <- prom.MustNewConstMetric(
			c.desc,
			prom.GaugeValue,
			1,
			strconv.Itoa(cpu.HyperthreadID),
			strconv.Itoa(cpu.CoreID),
			strconv.Itoa(cpu.SiblingID),
			strconv.Itoa(cpu.SocketID),
			vendor.Vendor,
			vendor.Brand,
		)
	}
	ch <- prom.MustNewConstMetric(c.info, prom.GaugeValue, float64(c.topo.SocketCount()))
}
