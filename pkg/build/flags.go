// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata embedded at compile time with linker
// flags:
//
//	go build -ldflags "-X shaker/pkg/build.buildName=shaker \
//	  -X shaker/pkg/build.buildVersion=0.3.0 \
//	  -X shaker/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X shaker/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds without the flags keep the defaults below.
package build

import (
	"errors"
	"fmt"
)

// Info holds the build metadata.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String returns a one-line version banner.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

const (
	defaultName        = "shaker"
	defaultDescription = "Track rhythmic shaking from an accelerometer stream and publish a phase-continuous position"
	unknown            = "unknown"
)

// Package-level variables populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = defaultInfo()
)

func defaultInfo() *Info {
	return &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build info. Flags that
// were not provided keep their development defaults and are reported in
// the returned error, so callers may warn and continue.
func Initialize() error {
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}

	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}
