// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// BuildContainerView folds the process table into one aggregate per
// container id, including the idle and uncontained buckets. The view is
// rebuilt from scratch on every call.
func BuildContainerView(table *ProcessTable) Containers {
	containers := make(Containers)
	table.Each(func(e *ProcessTableEntry) {
		id := e.ContainerID
		if id == "" {
			id = UncontainedContainerID
		}

		c, ok := containers[id]
		if !ok {
			c = &ContainerAggregate{
				ID:      id,
				Threads: sets.New[int32](),
			}
			containers[id] = c
		}

		c.Counters.add(e.Counters)
		c.WeightedCycles += e.WeightedCycles()
		c.Power += e.Power
		c.CPUUsage += e.CPUUsage
		c.Threads.Insert(e.PID)
		c.LastSeen = max(c.LastSeen, e.LastSeen)
	})
	return containers
}
