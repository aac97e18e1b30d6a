package version

import "runtime/debug"

// Version information for pricematch
const (
	// Version is the current semantic version
	Version = "0.3.0"

	// PromptVersion is bumped whenever the reranker prompt changes, so cached
	// verdicts from older prompts are not reused.
	PromptVersion = "2"
)

// Set during build time (use -ldflags "-X ...version.GitCommit=abc").
var (
	BuildDate = "development"
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	commit := GitCommit
	if commit == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			}
		}
	}
	return "pricematch " + Version + " (commit: " + commit + ", built: " + BuildDate + ")"
}
