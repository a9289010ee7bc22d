package version

// Version is set via ldflags at build time:
// go build -ldflags "-X github.com/teamcutter/patchr/internal/version.Version=v0.1.0" ./cmd/patchr
var Version = "dev"
