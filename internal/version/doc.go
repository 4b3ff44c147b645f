// Package version exposes build metadata of the antctrl binaries.
//
// Version, Commit and BuildTime are set with -ldflags "-X" at build time.
package version
