// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/deepmon/deepmon/internal/device"
	"github.com/deepmon/deepmon/internal/monitor"
	"github.com/deepmon/deepmon/internal/service"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

type (
	Runner     = service.Runner
	Shutdowner = service.Shutdowner
	Monitor    = monitor.DataProvider
)

// Exporter prints every published snapshot as console tables
type Exporter struct {
	logger  *slog.Logger
	monitor Monitor
	out     io.WriteCloser
	top     int
}

var (
	_ Runner     = (*Exporter)(nil)
	_ Shutdowner = (*Exporter)(nil)
)

type Opts struct {
	logger *slog.Logger
	out    io.WriteCloser
	top    int
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		out:    os.Stdout,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

func WithOutput(out io.WriteCloser) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

// WithTop limits the container table to the n containers drawing the most
// power. Zero prints every container.
func WithTop(n int) OptionFn {
	return func(o *Opts) {
		o.top = n
	}
}

func NewExporter(m Monitor, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger:  opts.logger.With("service", "stdout"),
		monitor: m,
		out:     opts.out,
		top:     opts.top,
	}
}

func (e *Exporter) Run(ctx context.Context) error {
	data := e.monitor.DataChannel()
	for {
		select {
		case <-data:
			snapshot, err := e.monitor.Snapshot()
			if err != nil {
				e.logger.Warn("Failed to read snapshot", "error", err)
				continue
			}
			e.write(snapshot)
		case <-ctx.Done():
			e.logger.Info("Exiting stdout exporter")
			return nil
		}
	}
}

func (e *Exporter) write(snapshot *monitor.Snapshot) {
	if snapshot.Sample != nil {
		writeSample(e.out, snapshot.Sample)
	}
	writeContainers(e.out, snapshot.Containers, e.top)
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.Alignment = tw.AlignRight
	})
	table.Header(header)
	return table
}

func writeSample(out io.Writer, s *monitor.Sample) {
	rows := make([][]string, 0, len(device.Domains))
	for _, d := range device.Domains {
		rows = append(rows, []string{d, s.Power[d].String()})
	}
	rows = append(rows,
		[]string{"execution", s.ExecutionTime().String()},
		[]string{"timeslice", time.Duration(s.TimesliceNS).String()},
		[]string{"switches", strconv.FormatUint(s.SwitchCount, 10)},
		[]string{"threads", strconv.Itoa(len(s.Threads))},
	)

	table := newTable(out, []string{"Sample", "Value"})
	_ = table.Bulk(rows)
	_ = table.Render()
}

func writeContainers(out io.Writer, containers monitor.Containers, top int) {
	list := make([]*monitor.ContainerAggregate, 0, len(containers))
	for _, c := range containers {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Power != list[j].Power {
			return list[i].Power > list[j].Power
		}
		return list[i].ID < list[j].ID
	})
	if top > 0 && len(list) > top {
		list = list[:top]
	}

	rows := make([][]string, 0, len(list))
	for _, c := range list {
		rows = append(rows, []string{
			c.ID,
			c.Power.String(),
			fmt.Sprintf("%.2f", c.CPUUsage),
			strconv.Itoa(c.ThreadCount()),
			strconv.FormatUint(c.Cycles, 10),
			strconv.FormatUint(c.Instructions, 10),
			fmt.Sprintf("%.2f", c.IPC()),
			strconv.FormatUint(c.CacheMisses, 10),
		})
	}

	table := newTable(out, []string{"Container", "Power(W)", "CPU(%)", "Threads", "Cycles", "Instructions", "IPC", "Cache Misses"})
	_ = table.Bulk(rows)
	_ = table.Render()
}

func (e *Exporter) Shutdown() error {
	if e.out == os.Stdout {
		return nil
	}
	return e.out.Close()
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "stdout"
}
