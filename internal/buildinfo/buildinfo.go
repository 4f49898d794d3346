// Package buildinfo contains build-time metadata separate from user
// configuration. The values are injected at link time.
package buildinfo

// Set via -ldflags at build time, e.g.
// -ldflags "-X github.com/cognitedata/cdf-tk/internal/buildinfo.Version=v1.2.3".
var (
	Version   = "dev"
	BuildDate = "unknown"
)
