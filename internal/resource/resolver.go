// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource resolves the container membership of threads from their
// cgroup descriptors.
package resource

import (
	"errors"
	"fmt"
	"log/slog"
)

var errNoProcFS = errors.New("no usable procfs root")

// CgroupResolver looks a thread up in each configured procfs root. It is
// used from the collection loop only and keeps no state between lookups.
type CgroupResolver struct {
	logger  *slog.Logger
	readers []cgroupReader
}

// NewCgroupResolver opens every configured procfs root that exists. Missing
// roots are skipped so the same configuration works on bare metal and in a
// container with the host /proc mounted.
func NewCgroupResolver(applyOpts ...OptionFn) (*CgroupResolver, error) {
	opts := defaultOptions()
	for _, apply := range applyOpts {
		apply(opts)
	}

	logger := opts.logger.With("service", "resource")
	readers := opts.readers
	if readers == nil {
		for _, root := range opts.roots {
			r, err := newProcFSReader(root)
			if err != nil {
				logger.Debug("Skipping procfs root", "root", root, "error", err)
				continue
			}
			readers = append(readers, r)
		}
	}
	if len(readers) == 0 {
		return nil, fmt.Errorf("%w in %v", errNoProcFS, opts.roots)
	}

	roots := make([]string, len(readers))
	for i, r := range readers {
		roots[i] = r.Root()
	}
	logger.Info("Cgroup resolver ready", "roots", roots)

	return &CgroupResolver{logger: logger, readers: readers}, nil
}

// CgroupID returns the container id of a thread, trying the thread id and
// then its thread group id. Threads that exited or are not in a container
// resolve to an empty string.
func (r *CgroupResolver) CgroupID(pid, tgid int32) string {
	ids := []int32{pid}
	if tgid != pid && tgid > 0 {
		ids = append(ids, tgid)
	}

	for _, id := range ids {
		if id < 0 {
			continue
		}
		var paths []string
		for _, reader := range r.readers {
			p, err := reader.CgroupPaths(int(id))
			if err != nil {
				// thread has exited or is not visible from this root
				r.logger.Debug("Cgroup lookup failed", "id", id, "root", reader.Root(), "error", err)
				continue
			}
			paths = append(paths, p...)
		}
		if cid, ok := containerIDFromPaths(paths); ok {
			return cid
		}
	}
	return ""
}
