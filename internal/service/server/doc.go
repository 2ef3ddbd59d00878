// Package server assembles the schedule-watch daemon.
//
// Run wires the update checker to its source, notification sinks and
// baseline file, then serves the host WebSocket channel, Prometheus metrics
// and the gRPC control service until the context is canceled.
package server
