// SPDX-License-Identifier: MIT
//
// Package build exposes the name, build timestamp, Git commit and version
// embedded with linker flags, for example:
//
//	go build -ldflags "-X ledviz/pkg/build.buildName=ledviz -X ledviz/pkg/build.buildVersion=0.3.0 ..."
//
// A binary built without any of the flags is a development build and
// reports the defaults below.
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown in the CLI help.
const Description = "Real-time audio spectrum visualizer for LED strips"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the flags as a version line.
func (f ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "ledviz",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies the linker flags into the build information. It must
// run before GetBuildFlags is used. Setting some flags but not others is a
// broken release build and returns an error naming the first missing one.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		return nil
	}

	var errs []error
	if buildName == "" {
		errs = append(errs, errors.New("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, errors.New("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, errors.New("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, errors.New("BuildVersion is required"))
	}
	if len(errs) > 0 {
		return errs[0]
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
