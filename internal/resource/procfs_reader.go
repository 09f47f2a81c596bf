// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// cgroupReader returns the cgroup paths of a process or thread id
type cgroupReader interface {
	Root() string
	CgroupPaths(id int) ([]string, error)
}

// procFSReader implements cgroupReader on top of a procfs mount
type procFSReader struct {
	root string
	fs   procfs.FS
}

var _ cgroupReader = (*procFSReader)(nil)

func newProcFSReader(root string) (*procFSReader, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", root, err)
	}
	return &procFSReader{root: root, fs: fs}, nil
}

func (r *procFSReader) Root() string {
	return r.root
}

func (r *procFSReader) CgroupPaths(id int) ([]string, error) {
	proc, err := r.fs.Proc(id)
	if err != nil {
		return nil, err
	}
	cgroups, err := proc.Cgroups()
	if err != nil {
		return nil, fmt.Errorf("failed to get process cgroups: %w", err)
	}

	paths := make([]string, len(cgroups))
	for i, cg := range cgroups {
		paths[i] = cg.Path
	}
	return paths, nil
}
