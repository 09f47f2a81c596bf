// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"regexp"
	"strings"
)

var (
	// cgroupfs driver: .../docker/<id>
	legacyPattern = regexp.MustCompile(`^([0-9a-f]{64})$`)

	// systemd driver: .../docker-<id>.scope
	systemdPattern = regexp.MustCompile(`^docker-([0-9a-f]{64})\.scope$`)
)

// cgroupPatterns are tried in order; the first pattern matching any path wins
var cgroupPatterns = []*regexp.Regexp{legacyPattern, systemdPattern}

// ResolveContainerID extracts the 64 hex character container id from the
// text of a /proc/<id>/cgroup file. The last segment of each cgroup path is
// matched first as a bare id and then as a systemd docker scope.
func ResolveContainerID(text string) (string, bool) {
	var paths []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// hierarchy-ID:controller-list:cgroup-path
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		paths = append(paths, parts[2])
	}
	return containerIDFromPaths(paths)
}

func containerIDFromPaths(paths []string) (string, bool) {
	for _, pattern := range cgroupPatterns {
		if id, ok := matchPaths(pattern, paths); ok {
			return id, true
		}
	}
	return "", false
}

func matchPaths(pattern *regexp.Regexp, paths []string) (string, bool) {
	for _, path := range paths {
		if !strings.Contains(path, "/") {
			continue
		}
		segment := path[strings.LastIndex(path, "/")+1:]
		if m := pattern.FindStringSubmatch(segment); m != nil {
			return m[1], true
		}
	}
	return "", false
}
