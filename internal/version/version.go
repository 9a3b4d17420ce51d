// Package version identifies the stellar-meta build to users and to the web
// services it queries.
package version

import (
	"fmt"
	"runtime/debug"
)

// Overridden with -ldflags "-X .../internal/version.Version=...".
var (
	Name      = "stellar-meta"
	Version   = "0.1.0"
	BuildTime = ""
	GitCommit = ""
)

// Homepage is sent to web services that ask clients to identify themselves.
const Homepage = "https://github.com/edumarques81/stellar-metadata"

// Info is what `stellar-meta --version` prints.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo reports the linked-in build values. When the binary was built
// without -ldflags, the commit and time recorded by the go tool are used.
func GetInfo() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromSettings(&info, bi.Settings)
	}
	return info
}

func fillFromSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		}
	}
}

// String renders "name vX.Y.Z (commit) built TIME", omitting unknown parts.
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}

// UserAgent returns the client identification string in the
// "name/version ( contact )" form MusicBrainz asks for. The homepage is used
// when contact is empty.
func UserAgent(contact string) string {
	if contact == "" {
		contact = Homepage
	}
	return fmt.Sprintf("%s/%s ( %s )", Name, Version, contact)
}
