// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// Level selects the metric families an exporter emits using bit patterns
type Level uint32

const (
	// MetricsLevelNode covers the per tick sample: execution time, switch
	// count, timeslice and per socket domain power
	MetricsLevelNode Level = 1 << iota // 1
	// MetricsLevelThread covers per thread power and cpu usage
	MetricsLevelThread // 2
	// MetricsLevelContainer covers container aggregates
	MetricsLevelContainer // 4

	MetricsLevelAll = MetricsLevelNode | MetricsLevelThread | MetricsLevelContainer
)

var levelNames = []struct {
	level Level
	name  string
}{
	{MetricsLevelNode, "node"},
	{MetricsLevelThread, "thread"},
	{MetricsLevelContainer, "container"},
}

func (l Level) names() []string {
	var names []string
	for _, ln := range levelNames {
		if l&ln.level != 0 {
			names = append(names, ln.name)
		}
	}
	return names
}

// String returns the string representation of the level
func (l Level) String() string {
	return strings.Join(l.names(), ",")
}

// IsNodeEnabled checks if node metrics are enabled
func (l Level) IsNodeEnabled() bool {
	return l&MetricsLevelNode != 0
}

// IsThreadEnabled checks if thread metrics are enabled
func (l Level) IsThreadEnabled() bool {
	return l&MetricsLevelThread != 0
}

// IsContainerEnabled checks if container metrics are enabled
func (l Level) IsContainerEnabled() bool {
	return l&MetricsLevelContainer != 0
}

// ParseLevel parses a slice of strings into a Level. An empty slice selects
// every level.
func ParseLevel(levels []string) (Level, error) {
	if len(levels) == 0 {
		return MetricsLevelAll, nil
	}

	var result Level
next:
	for _, level := range levels {
		name := strings.ToLower(strings.TrimSpace(level))
		for _, ln := range levelNames {
			if ln.name == name {
				result |= ln.level
				continue next
			}
		}
		return 0, fmt.Errorf("unknown metrics level: %s", level)
	}
	return result, nil
}

// ValidLevels returns the list of valid metrics levels
func ValidLevels() []string {
	return MetricsLevelAll.names()
}

// MarshalYAML implements yaml.Marshaler interface
func (l Level) MarshalYAML() (interface{}, error) {
	names := l.names()
	// single string for one level
	if len(names) == 1 {
		return names[0], nil
	}
	return names, nil
}

// UnmarshalYAML implements yaml.Unmarshaler interface
func (l *Level) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		parsed, parseErr := ParseLevel([]string{single})
		if parseErr != nil {
			return parseErr
		}
		*l = parsed
		return nil
	}

	var multiple []string
	if err := unmarshal(&multiple); err == nil {
		parsed, parseErr := ParseLevel(multiple)
		if parseErr != nil {
			return parseErr
		}
		*l = parsed
		return nil
	}

	return fmt.Errorf("cannot unmarshal metrics level: must be a string or array of strings")
}
