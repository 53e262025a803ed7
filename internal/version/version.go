package version

import (
	"fmt"
	"strings"
)

// Set at build time with -ldflags "-X .../internal/version.Version=..."
var (
	App       = "AccountGate"
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	BuildOS   string
	BuildArch string
)

// PrintVersion prints the version information
func PrintVersion() {
	fmt.Print(Details())
}

// Details renders every known build attribute, one per line
func Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s\n", App, getVersion())
	if GitCommit != "" {
		fmt.Fprintf(&b, "Git commit: %s\n", getShortCommit())
	}
	if BuildTime != "" {
		fmt.Fprintf(&b, "Build time: %s\n", BuildTime)
	}
	if GoVersion != "" {
		fmt.Fprintf(&b, "Go version: %s\n", GoVersion)
	}
	if BuildOS != "" && BuildArch != "" {
		fmt.Fprintf(&b, "Built for: %s/%s\n", BuildOS, BuildArch)
	}
	return b.String()
}

// Short is the one-line form logged at startup
func Short() string {
	if GitCommit == "" {
		return fmt.Sprintf("%s %s", App, getVersion())
	}
	return fmt.Sprintf("%s %s (%s)", App, getVersion(), getShortCommit())
}

func getShortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

func getVersion() string {
	if Version != "" {
		return Version
	}
	return "dev"
}
