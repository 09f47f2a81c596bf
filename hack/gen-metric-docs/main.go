// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// gen-metric-docs writes the reference of every metric family the
// prometheus exporter can emit.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/deepmon/deepmon/config"
	"github.com/deepmon/deepmon/internal/exporter/prometheus/collector"
	"github.com/deepmon/deepmon/internal/monitor"
	"github.com/deepmon/deepmon/internal/topology"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricInfo holds information about a Prometheus metric
type MetricInfo struct {
	Name        string
	Type        string
	Description string
	Labels      []string
	ConstLabels map[string]string
}

// stubMonitor never has a snapshot; only the descriptors are needed
type stubMonitor struct {
	topo *topology.Topology
}

func (m *stubMonitor) DataChannel() <-chan struct{} {
	return make(chan struct{})
}

func (m *stubMonitor) Snapshot() (*monitor.Snapshot, error) {
	return nil, errors.New("no snapshot")
}

func (m *stubMonitor) Topology() *topology.Topology {
	return m.topo
}

var (
	fqNameRegex         = regexp.MustCompile(`fqName: "([^"]+)"`)
	helpRegex           = regexp.MustCompile(`help: "([^"]+)"`)
	variableLabelsRegex = regexp.MustCompile(`variableLabels: \{([^}]*)\}`)
	constLabelsRegex    = regexp.MustCompile(`constLabels: \{([^}]*)\}`)
	labelPairRegex      = regexp.MustCompile(`(\w+)="([^"]*)"`)
)

// extractMetricsInfo extracts metric information from a Prometheus collector
func extractMetricsInfo(c prometheus.Collector) ([]MetricInfo, error) {
	ch := make(chan *prometheus.Desc, 100)
	c.Describe(ch)
	close(ch)

	var metrics []MetricInfo
	for desc := range ch {
		descStr := desc.String()
		name := fqNameRegex.FindStringSubmatch(descStr)
		if len(name) < 2 {
			return nil, fmt.Errorf("could not parse fqName from: %s", descStr)
		}
		help := helpRegex.FindStringSubmatch(descStr)
		if len(help) < 2 {
			return nil, fmt.Errorf("could not parse help from: %s", descStr)
		}

		var labels []string
		if m := variableLabelsRegex.FindStringSubmatch(descStr); len(m) >= 2 && m[1] != "" {
			for _, l := range strings.Split(m[1], ",") {
				labels = append(labels, strings.TrimSpace(l))
			}
		}

		constLabels := make(map[string]string)
		if m := constLabelsRegex.FindStringSubmatch(descStr); len(m) >= 2 {
			for _, pair := range labelPairRegex.FindAllStringSubmatch(m[1], -1) {
				constLabels[pair[1]] = pair[2]
			}
		}

		metricType := "GAUGE"
		if strings.HasSuffix(name[1], "_total") {
			metricType = "COUNTER"
		}

		metrics = append(metrics, MetricInfo{
			Name:        name[1],
			Type:        metricType,
			Description: help[1],
			Labels:      labels,
			ConstLabels: constLabels,
		})
	}
	return metrics, nil
}

type section struct {
	prefix string
	title  string
	intro  string
}

var sections = []section{{
	prefix: "deepmon_node_",
	title:  "Node Metrics",
	intro:  "Window totals, RAPL power and topology of the host.",
}, {
	prefix: "deepmon_container_",
	title:  "Container Metrics",
	intro:  "Aggregates of the threads tracked for each container, including the idle and uncontained buckets.",
}, {
	prefix: "deepmon_thread_",
	title:  "Thread Metrics",
	intro:  "Power and CPU usage of every thread live in the last window. Idle slots carry negative ids.",
}, {
	title: "Other Metrics",
	intro: "Additional metrics provided by deepmon.",
}}

// generateMarkdown generates Markdown documentation from metric information
func generateMarkdown(metrics []MetricInfo) string {
	var md strings.Builder
	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Name < metrics[j].Name
	})

	md.WriteString("# deepmon Metrics\n\n")
	md.WriteString("This document describes the metrics exported by deepmon at node, container and thread level.\n\n")
	md.WriteString("Every value describes the last sampling window; the window length is exported as `deepmon_node_timeslice_seconds`.\n\n")
	md.WriteString("### Metric Types\n\n")
	md.WriteString("- **COUNTER**: A cumulative metric that only increases over time\n")
	md.WriteString("- **GAUGE**: A metric that can increase and decrease\n\n")
	md.WriteString("## Metrics Reference\n\n")

	grouped := make([][]MetricInfo, len(sections))
	for _, m := range metrics {
		for i, s := range sections {
			if s.prefix == "" || strings.HasPrefix(m.Name, s.prefix) {
				grouped[i] = append(grouped[i], m)
				break
			}
		}
	}
	for i, s := range sections {
		if len(grouped[i]) == 0 {
			continue
		}
		fmt.Fprintf(&md, "### %s\n\n%s\n\n", s.title, s.intro)
		writeMetricsSection(&md, grouped[i])
	}

	md.WriteString("---\n\n")
	md.WriteString("This documentation was automatically generated by the gen-metric-docs tool.\n")
	return md.String()
}

// writeMetricsSection writes a section of metrics to the markdown builder
func writeMetricsSection(md *strings.Builder, metrics []MetricInfo) {
	for _, metric := range metrics {
		fmt.Fprintf(md, "#### %s\n\n", metric.Name)
		fmt.Fprintf(md, "- **Type**: %s\n", metric.Type)
		fmt.Fprintf(md, "- **Description**: %s\n", metric.Description)
		if len(metric.Labels) > 0 {
			md.WriteString("- **Labels**:\n")
			for _, label := range metric.Labels {
				fmt.Fprintf(md, "  - `%s`\n", label)
			}
		}
		if len(metric.ConstLabels) > 0 {
			md.WriteString("- **Constant Labels**:\n")
			keys := make([]string, 0, len(metric.ConstLabels))
			for key := range metric.ConstLabels {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(md, "  - `%s`\n", key)
			}
		}
		md.WriteString("\n")
	}
}

// collectors returns every collector the exporter registers, keyed by name
func collectors(logger *slog.Logger) (map[string]prometheus.Collector, error) {
	topo, err := topology.New([]topology.CPU{{HyperthreadID: 0}})
	if err != nil {
		return nil, err
	}
	// descriptors do not depend on the zones present under the mount
	raplZone, err := collector.NewEnergyZoneCollector(os.TempDir(), logger)
	if err != nil {
		return nil, err
	}
	stub := &stubMonitor{topo: topo}
	return map[string]prometheus.Collector{
		"attribution": collector.NewAttributionCollector(stub, logger, config.MetricsLevelAll),
		"build_info":  collector.NewBuildInfoCollector(),
		"cpu_info":    collector.NewCPUInfoCollector(topo),
		"rapl_zone":   raplZone,
	}, nil
}

func run(outputPath string, log io.Writer) error {
	logger := slog.New(slog.NewTextHandler(log, nil))
	all, err := collectors(logger)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var metrics []MetricInfo
	for _, name := range names {
		m, err := extractMetricsInfo(all[name])
		if err != nil {
			return fmt.Errorf("failed to extract %s metrics: %w", name, err)
		}
		fmt.Fprintf(log, "Extracted %d metrics from %s collector\n", len(m), name)
		metrics = append(metrics, m...)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(generateMarkdown(metrics)), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown file: %w", err)
	}
	fmt.Fprintf(log, "Wrote %d metrics to %s\n", len(metrics), outputPath)
	return nil
}

func main() {
	outputPath := flag.String("output", "docs/metrics.md", "Path to output Markdown file")
	flag.Parse()

	if err := run(*outputPath, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
