// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/deepmon/deepmon/config"
	"github.com/deepmon/deepmon/internal/device"
	"github.com/deepmon/deepmon/internal/monitor"
	"github.com/prometheus/client_golang/prometheus"
)

type DataProvider = monitor.DataProvider

const cntrID = "container_id"

// AttributionCollector exports the last published snapshot. Every value is
// read from a single snapshot so node, thread and container series of one
// scrape always belong to the same window.
type AttributionCollector struct {
	dp           DataProvider
	logger       *slog.Logger
	metricsLevel config.Level

	// node
	nodeExecutionTimeDesc *prometheus.Desc
	nodeSwitchesDesc      *prometheus.Desc
	nodeTimesliceDesc     *prometheus.Desc
	nodeWattsDesc         *prometheus.Desc
	nodeSocketWattsDesc   *prometheus.Desc
	nodeThreadsDesc       *prometheus.Desc

	// thread
	threadWattsDesc *prometheus.Desc
	threadUsageDesc *prometheus.Desc

	// container
	containerWattsDesc          *prometheus.Desc
	containerUsageDesc          *prometheus.Desc
	containerCyclesDesc         *prometheus.Desc
	containerWeightedCyclesDesc *prometheus.Desc
	containerInstructionsDesc   *prometheus.Desc
	containerCacheMissesDesc    *prometheus.Desc
	containerCacheRefsDesc      *prometheus.Desc
	containerTimeDesc           *prometheus.Desc
	containerThreadsDesc        *prometheus.Desc
	containerIPCDesc            *prometheus.Desc
}

var _ prometheus.Collector = (*AttributionCollector)(nil)

func desc(level, name, help string, labels []string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, level, name), help, labels, nil)
}

func wattsDesc(level string, labels []string) *prometheus.Desc {
	return desc(level, "cpu_watts",
		fmt.Sprintf("CPU power attributed at %s level in watts", level), labels)
}

func usageDesc(level string, labels []string) *prometheus.Desc {
	return desc(level, "cpu_usage_percent",
		fmt.Sprintf("CPU usage at %s level in percent of a single hyperthread", level), labels)
}

// NewAttributionCollector creates a collector exporting the snapshots of dp
// for the families enabled in metricsLevel
func NewAttributionCollector(dp DataProvider, logger *slog.Logger, metricsLevel config.Level) *AttributionCollector {
	const domain = "domain"
	cntr := []string{cntrID}

	return &AttributionCollector{
		dp:           dp,
		logger:       logger.With("collector", "attribution"),
		metricsLevel: metricsLevel,

		nodeExecutionTimeDesc: desc("node", "execution_seconds",
			"Time spent by live threads and idle slots during the last window", nil),
		nodeSwitchesDesc: desc("node", "context_switches",
			"Context switches observed during the last window", nil),
		nodeTimesliceDesc: desc("node", "timeslice_seconds",
			"Length of the last sampling window", nil),
		nodeWattsDesc: desc("node", "cpu_watts",
			"Active CPU power of the node by RAPL domain in watts", []string{domain}),
		nodeSocketWattsDesc: desc("node", "socket_cpu_watts",
			"Active CPU power of a socket by RAPL domain in watts", []string{"socket", domain}),
		nodeThreadsDesc: desc("node", "threads",
			"Threads and idle slots live in the last window", nil),

		threadWattsDesc: wattsDesc("thread", []string{"pid", "tgid", "comm", cntrID}),
		threadUsageDesc: usageDesc("thread", []string{"pid", "tgid", "comm", cntrID}),

		containerWattsDesc: wattsDesc("container", cntr),
		containerUsageDesc: usageDesc("container", cntr),
		containerCyclesDesc: desc("container", "cycles",
			"CPU cycles of the container's threads during the last window", cntr),
		containerWeightedCyclesDesc: desc("container", "weighted_cycles",
			"Socket weighted cycles the container's power share is computed from", cntr),
		containerInstructionsDesc: desc("container", "instructions",
			"Instructions retired by the container's threads during the last window", cntr),
		containerCacheMissesDesc: desc("container", "cache_misses",
			"Last level cache misses of the container's threads during the last window", cntr),
		containerCacheRefsDesc: desc("container", "cache_references",
			"Last level cache references of the container's threads during the last window", cntr),
		containerTimeDesc: desc("container", "cpu_seconds",
			"CPU time of the container's threads during the last window", cntr),
		containerThreadsDesc: desc("container", "threads",
			"Threads tracked for the container", cntr),
		containerIPCDesc: desc("container", "ipc",
			"Instructions per cycle of the container", cntr),
	}
}

// Describe implements the prometheus.Collector interface
func (c *AttributionCollector) Describe(ch chan<- *prometheus.Desc) {
	if c.metricsLevel.IsNodeEnabled() {
		ch <- c.nodeExecutionTimeDesc
		ch <- c.nodeSwitchesDesc
		ch <- c.nodeTimesliceDesc
		ch <- c.nodeWattsDesc
		ch <- c.nodeSocketWattsDesc
		ch <- c.nodeThreadsDesc
	}

	if c.metricsLevel.IsThreadEnabled() {
		ch <- c.threadWattsDesc
		ch <- c.threadUsageDesc
	}

	if c.metricsLevel.IsContainerEnabled() {
		ch <- c.containerWattsDesc
		ch <- c.containerUsageDesc
		ch <- c.containerCyclesDesc
		ch <- c.containerWeightedCyclesDesc
		ch <- c.containerInstructionsDesc
		ch <- c.containerCacheMissesDesc
		ch <- c.containerCacheRefsDesc
		ch <- c.containerTimeDesc
		ch <- c.containerThreadsDesc
		ch <- c.containerIPCDesc
	}
}

// Collect implements the prometheus.Collector interface
func (c *AttributionCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot, err := c.dp.Snapshot()
	if err != nil {
		c.logger.Debug("Collect called before a snapshot is available", "error", err)
		return
	}

	started := time.Now()
	defer func() {
		c.logger.Debug("Collected attribution data", "duration", time.Since(started))
	}()

	if c.metricsLevel.IsNodeEnabled() && snapshot.Sample != nil {
		c.collectNodeMetrics(ch, snapshot.Sample)
	}

	if c.metricsLevel.IsThreadEnabled() && snapshot.Sample != nil {
		c.collectThreadMetrics(ch, snapshot.Sample, containerOf(snapshot.Containers))
	}

	if c.metricsLevel.IsContainerEnabled() {
		c.collectContainerMetrics(ch, snapshot.Containers)
	}
}

func (c *AttributionCollector) collectNodeMetrics(ch chan<- prometheus.Metric, s *monitor.Sample) {
	ch <- prometheus.MustNewConstMetric(c.nodeExecutionTimeDesc, prometheus.GaugeValue,
		s.ExecutionTime().Seconds())
	ch <- prometheus.MustNewConstMetric(c.nodeSwitchesDesc, prometheus.GaugeValue,
		float64(s.SwitchCount))
	ch <- prometheus.MustNewConstMetric(c.nodeTimesliceDesc, prometheus.GaugeValue,
		time.Duration(s.TimesliceNS).Seconds())
	ch <- prometheus.MustNewConstMetric(c.nodeThreadsDesc, prometheus.GaugeValue,
		float64(len(s.Threads)))

	for _, d := range device.Domains {
		ch <- prometheus.MustNewConstMetric(c.nodeWattsDesc, prometheus.GaugeValue,
			s.Power[d].Watts(), d)
	}
	for socket, power := range s.SocketPower {
		for _, d := range device.Domains {
			ch <- prometheus.MustNewConstMetric(c.nodeSocketWattsDesc, prometheus.GaugeValue,
				power[d].Watts(), strconv.Itoa(socket), d)
		}
	}
}

func (c *AttributionCollector) collectThreadMetrics(ch chan<- prometheus.Metric, s *monitor.Sample, containers map[int32]string) {
	if len(s.Threads) == 0 {
		c.logger.Debug("No threads to export metrics for")
		return
	}

	for id, t := range s.Threads {
		pid := strconv.Itoa(int(id))
		tgid := strconv.Itoa(int(t.TGID))
		cid, ok := containers[id]
		if !ok {
			cid = monitor.UncontainedContainerID
		}

		c.threadGauge(ch, c.threadWattsDesc, t.Power.Watts(), pid, tgid, t.Comm, cid)
		c.threadGauge(ch, c.threadUsageDesc, t.CPUUsage, pid, tgid, t.Comm, cid)
	}
}

// threadGauge skips a thread whose labels cannot be exported instead of
// failing the scrape
func (c *AttributionCollector) threadGauge(ch chan<- prometheus.Metric, d *prometheus.Desc, v float64, labels ...string) {
	m, err := prometheus.NewConstMetric(d, prometheus.GaugeValue, v, labels...)
	if err != nil {
		c.logger.Debug("Skipping thread metric", "pid", labels[0], "error", err)
		return
	}
	ch <- m
}

func (c *AttributionCollector) collectContainerMetrics(ch chan<- prometheus.Metric, containers monitor.Containers) {
	if len(containers) == 0 {
		c.logger.Debug("No containers to export metrics for")
		return
	}

	gauge := func(d *prometheus.Desc, v float64, id string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, id)
	}
	for id, cntr := range containers {
		gauge(c.containerWattsDesc, cntr.Power.Watts(), id)
		gauge(c.containerUsageDesc, cntr.CPUUsage, id)
		gauge(c.containerCyclesDesc, float64(cntr.Cycles), id)
		gauge(c.containerWeightedCyclesDesc, float64(cntr.WeightedCycles), id)
		gauge(c.containerInstructionsDesc, float64(cntr.Instructions), id)
		gauge(c.containerCacheMissesDesc, float64(cntr.CacheMisses), id)
		gauge(c.containerCacheRefsDesc, float64(cntr.CacheRefs), id)
		gauge(c.containerTimeDesc, time.Duration(cntr.TimeNS).Seconds(), id)
		gauge(c.containerThreadsDesc, float64(cntr.ThreadCount()), id)
		gauge(c.containerIPCDesc, cntr.IPC(), id)
	}
}

// containerOf maps thread ids to the container they were folded into
func containerOf(containers monitor.Containers) map[int32]string {
	ids := make(map[int32]string)
	for id, cntr := range containers {
		for tid := range cntr.Threads {
			ids[tid] = id
		}
	}
	return ids
}
