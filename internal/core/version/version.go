// Package version reports the build stamp of the mailsweep binary
package version

// BuildInfo holds version information about the build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information. version, commit and date are set at build time:
//
//	-ldflags "-X 'mailsweep/internal/core/version.version=v0.3.0' -X 'mailsweep/internal/core/version.commit=abcd'"
func Info() BuildInfo {
	return BuildInfo{
		Service: "mailsweep",
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// String is the one-line form used in the startup log
func (b BuildInfo) String() string {
	return b.Service + " " + b.Version + " (" + b.Commit + ", " + b.Date + ")"
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
