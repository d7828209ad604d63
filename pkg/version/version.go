package version

// Set via -ldflags "-X github.com/chmdznr/framer-bandwidth-check/pkg/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns a single line description of the build
func String() string {
	return Version + " (" + GitCommit + ", built " + BuildTime + ")"
}
