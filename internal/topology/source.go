// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/jaypipes/ghw/pkg/cpu"
	"github.com/klauspost/cpuid/v2"
	"github.com/prometheus/procfs"
)

const (
	SourceProcFS = "procfs"
	SourceGHW    = "ghw"
)

// cpuInfoReader is the subset of procfs.FS used to discover the topology
type cpuInfoReader interface {
	CPUInfo() ([]procfs.CPUInfo, error)
}

// Load discovers the host topology from the given source. procPath is the
// procfs mount used by the cpuinfo source; the ghw source reads through
// the chroot containing procPath.
func Load(source, procPath string) (*Topology, error) {
	var (
		t   *Topology
		err error
	)
	switch source {
	case SourceProcFS, "":
		t, err = FromProcFS(procPath)
	case SourceGHW:
		t, err = FromGHW(chrootFor(procPath))
	default:
		return nil, fmt.Errorf("unknown topology source: %s", source)
	}
	if err != nil {
		return nil, err
	}
	return t.WithVendor(hostVendor()), nil
}

// FromProcFS parses /proc/cpuinfo under procPath
func FromProcFS(procPath string) (*Topology, error) {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("creating procfs failed: %w", err)
	}
	return fromCPUInfo(fs)
}

func fromCPUInfo(r cpuInfoReader) (*Topology, error) {
	infos, err := r.CPUInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read cpuinfo: %w", err)
	}

	cpus := make([]CPU, 0, len(infos))
	for _, info := range infos {
		socket, err := parseID("physical id", info.PhysicalID)
		if err != nil {
			return nil, fmt.Errorf("processor %d: %w", info.Processor, err)
		}
		core, err := parseID("core id", info.CoreID)
		if err != nil {
			return nil, fmt.Errorf("processor %d: %w", info.Processor, err)
		}
		cpus = append(cpus, CPU{
			HyperthreadID: int(info.Processor),
			CoreID:        core,
			SocketID:      socket,
		})
	}
	return New(cpus)
}

func parseID(field, value string) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("missing %s", field)
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("malformed %s %q: %w", field, v, err)
	}
	return id, nil
}

// FromGHW builds the topology from ghw's processor/core/logical-processor view
func FromGHW(chroot string) (*Topology, error) {
	var opts []*ghw.WithOption
	if chroot != "" && chroot != "/" {
		opts = append(opts, ghw.WithChroot(chroot))
	}
	info, err := ghw.CPU(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu info: %w", err)
	}
	return fromGHWInfo(info)
}

func fromGHWInfo(info *cpu.Info) (*Topology, error) {
	var cpus []CPU
	for _, proc := range info.Processors {
		for _, core := range proc.Cores {
			for _, lp := range core.LogicalProcessors {
				cpus = append(cpus, CPU{
					HyperthreadID: lp,
					CoreID:        core.ID,
					SocketID:      proc.ID,
				})
			}
		}
	}
	return New(cpus)
}

// chrootFor maps a procfs mount such as /host/proc to its root /host
func chrootFor(procPath string) string {
	p := strings.TrimSuffix(procPath, "/")
	if !strings.HasSuffix(p, "/proc") {
		return ""
	}
	return strings.TrimSuffix(p, "/proc")
}

func hostVendor() CPUVendor {
	return CPUVendor{
		Vendor: cpuid.CPU.VendorString,
		Brand:  cpuid.CPU.BrandName,
	}
}
