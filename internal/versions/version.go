// Package versions reports build version information for mfgate.
package versions

import (
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const unknown = "unknown"

// Stamped at release time with -ldflags "-X .../versions.Version=v1.2.3"
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// VersionInfo is the payload of /version and `mfgate version`
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo describes the running binary
func GetVersionInfo() VersionInfo {
	return getVersionInfoWithValues(Version, Commit, BuildDate)
}

func getVersionInfoWithValues(version, commit, buildDate string) VersionInfo {
	// go build stamps VCS data that unreleased builds can fall back on
	if strings.HasPrefix(version, "dev") {
		revision, stamped := vcsSettings()
		if commit == unknown && revision != "" {
			commit = revision
		}
		if buildDate == unknown && stamped != "" {
			buildDate = stamped
		}
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.Format("2006-01-02 15:04:05 MST")
	}

	if version == "dev" {
		short := commit
		if len(short) > 8 {
			short = short[:8]
		}
		version = "build-" + short
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func vcsSettings() (revision, stamped string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			stamped = s.Value
		}
	}
	return revision, stamped
}
