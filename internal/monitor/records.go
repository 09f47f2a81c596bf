// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"slices"
	"strconv"
	"time"

	"github.com/deepmon/deepmon/internal/device"
)

// RecordVersion is bumped whenever the record layout or a metric name changes
const RecordVersion = 1

// RecordKind tags the subject a MetricRecord describes
type RecordKind string

const (
	KindSample    RecordKind = "sample"
	KindContainer RecordKind = "container"
	KindThread    RecordKind = "thread"
)

// Unit of a record value
type Unit string

const (
	UnitNanoseconds Unit = "ns"
	UnitMilliWatts  Unit = "mW"
	UnitCount       Unit = "count"
	UnitCycles      Unit = "cycles"
	UnitPercent     Unit = "percent"
)

// MetricRecord is a single exposition independent metric value
type MetricRecord struct {
	Version   int        `csv:"version"`
	Kind      RecordKind `csv:"kind"`
	Subject   string     `csv:"subject"` // container or thread id, empty for the sample
	Name      string     `csv:"name"`
	Value     float64    `csv:"value"`
	Unit      Unit       `csv:"unit"`
	Timestamp time.Time  `csv:"timestamp"`
}

func record(kind RecordKind, subject, name string, value float64, unit Unit, ts time.Time) MetricRecord {
	return MetricRecord{
		Version:   RecordVersion,
		Kind:      kind,
		Subject:   subject,
		Name:      name,
		Value:     value,
		Unit:      unit,
		Timestamp: ts,
	}
}

// SampleRecords returns the stable field set of a sample stamped with the
// tick timestamp ts
func SampleRecords(s *Sample, ts time.Time) []MetricRecord {
	recs := []MetricRecord{
		record(KindSample, "", "execution_time", float64(s.ExecutionTimeNS), UnitNanoseconds, ts),
		record(KindSample, "", "switch_count", float64(s.SwitchCount), UnitCount, ts),
		record(KindSample, "", "timeslice", float64(s.TimesliceNS), UnitNanoseconds, ts),
	}
	for _, d := range device.Domains {
		recs = append(recs, record(KindSample, "", d+"_power", s.Power[d].MilliWatts(), UnitMilliWatts, ts))
	}
	return recs
}

// ContainerRecords returns the stable field set of every container ordered
// by container id
func ContainerRecords(containers Containers, ts time.Time) []MetricRecord {
	ids := make([]string, 0, len(containers))
	for id := range containers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var recs []MetricRecord
	for _, id := range ids {
		c := containers[id]
		recs = append(recs,
			record(KindContainer, id, "cycles", float64(c.Cycles), UnitCycles, ts),
			record(KindContainer, id, "weighted_cycles", float64(c.WeightedCycles), UnitCycles, ts),
			record(KindContainer, id, "instructions", float64(c.Instructions), UnitCount, ts),
			record(KindContainer, id, "cache_misses", float64(c.CacheMisses), UnitCount, ts),
			record(KindContainer, id, "cache_refs", float64(c.CacheRefs), UnitCount, ts),
			record(KindContainer, id, "time_ns", float64(c.TimeNS), UnitNanoseconds, ts),
			record(KindContainer, id, "power", c.Power.MilliWatts(), UnitMilliWatts, ts),
			record(KindContainer, id, "cpu_usage", c.CPUUsage, UnitPercent, ts),
			record(KindContainer, id, "thread_count", float64(c.ThreadCount()), UnitCount, ts),
		)
	}
	return recs
}

// ThreadRecords returns power and cpu usage of the sample's threads
func ThreadRecords(s *Sample, ts time.Time) []MetricRecord {
	ids := make([]int32, 0, len(s.Threads))
	for id := range s.Threads {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	recs := make([]MetricRecord, 0, 2*len(ids))
	for _, id := range ids {
		t := s.Threads[id]
		subject := strconv.Itoa(int(id))
		recs = append(recs,
			record(KindThread, subject, "power", t.Power.MilliWatts(), UnitMilliWatts, ts),
			record(KindThread, subject, "cpu_usage", t.CPUUsage, UnitPercent, ts),
		)
	}
	return recs
}
