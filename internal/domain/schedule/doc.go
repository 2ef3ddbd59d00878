// Package schedule contains the core domain types for the published schedule.
//
// It defines Snapshot (the polled resource: generation stamp, ordered weeks and
// latest week) with Clone helpers and the order-preserving week diff used to
// decide which notification to raise.
package schedule
