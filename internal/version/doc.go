// Package version exposes build metadata for schedule-watch and schedule-ctl.
//
// Version, Commit and BuildTime are injected at build time via -ldflags -X.
// UserAgent is sent with every snapshot fetch.
package version
