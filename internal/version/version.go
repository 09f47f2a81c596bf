// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// set through -ldflags "-X github.com/deepmon/deepmon/internal/version.version=..."
var (
	version   string
	buildTime string
	gitBranch string
	gitCommit string
)

type VersionInfo struct {
	Version   string `yaml:"version"`
	BuildTime string `yaml:"buildTime"`
	GitBranch string `yaml:"gitBranch"`
	GitCommit string `yaml:"gitCommit"`

	GoVersion string `yaml:"goVersion"`
	GoOS      string `yaml:"goOS"`
	GoArch    string `yaml:"goArch"`
}

// Info returns the version information
func Info() VersionInfo {
	v := version
	if v == "" {
		v = "devel"
	}
	return VersionInfo{
		Version:   v,
		BuildTime: buildTime,
		GitBranch: gitBranch,
		GitCommit: gitCommit,

		GoVersion: runtime.Version(),
		GoOS:      runtime.GOOS,
		GoArch:    runtime.GOARCH,
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("deepmon %s (branch: %s, commit: %s, built: %s, %s %s/%s)",
		v.Version, v.GitBranch, v.GitCommit, v.BuildTime, v.GoVersion, v.GoOS, v.GoArch)
}
