// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

// raplSocket matches the package index in a powercap zone path
var raplSocket = regexp.MustCompile(`intel-rapl:(\d+)`)

// energyZone exposes the RAPL zones the energy sampler reads, one series per
// zone, so that attributed power can be traced back to its registers
type energyZone struct {
	sync.Mutex

	logger *slog.Logger
	sysfs  sysFS
	desc   *prom.Desc
}

var _ prom.Collector = &energyZone{}

func NewEnergyZoneCollector(sysPath string, logger *slog.Logger) (*energyZone, error) {
	fs, err := newSysFS(sysPath)
	if err != nil {
		return nil, fmt.Errorf("creating sysfs failed: %w", err)
	}
	return newEnergyCollectorWithFS(fs, logger), nil
}

// newEnergyCollectorWithFS injects a sysFS interface
func newEnergyCollectorWithFS(fs sysFS, logger *slog.Logger) *energyZone {
	if logger == nil {
		logger = slog.Default()
	}
	return &energyZone{
		logger: logger.With("collector", "rapl_zone"),
		sysfs:  fs,
		desc: prom.NewDesc(
			prom.BuildFQName(namespace, "node", "rapl_zone"),
			"RAPL zones read from sysfs",
			[]string{"name", "index", "socket", "path"},
			nil,
		),
	}
}

func (e *energyZone) Describe(ch chan<- *prom.Desc) {
	ch <- e.desc
}

func (e *energyZone) Collect(ch chan<- prom.Metric) {
	e.Lock()
	defer e.Unlock()

	zones, err := e.sysfs.Zones()
	if err != nil {
		e.logger.Debug("Failed to read RAPL zones", "error", err)
		return
	}
	for _, z := range zones {
		ch <- prom.MustNewConstMetric(
			e.desc,
			prom.GaugeValue,
			1,
			z.Name,
			strconv.Itoa(z.Index),
			socketOfPath(z.Path),
			z.Path,
		)
	}
}

// socketOfPath returns the package index of a zone path, empty when the
// path is not an intel-rapl zone
func socketOfPath(path string) string {
	m := raplSocket.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}
