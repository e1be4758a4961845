// Package meta carries build-time version information.
package meta

// Version is the Fleetwatch version, overridden at build time via
// -ldflags "-X github.com/justpow98/fleetwatch/internal/meta.Version=...".
var Version = "develop"
