// Package client implements schedule-ctl, the control client of schedule-watch.
//
// Each invocation dials the daemon's gRPC control service, sends one host
// message (or a health check) and prints the baseline the daemon holds afterwards.
package client
