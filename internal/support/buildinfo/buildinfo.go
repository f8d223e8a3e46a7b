// Package buildinfo exposes version metadata stamped at build time via
// -ldflags "-X gpuwatch/internal/support/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
)
