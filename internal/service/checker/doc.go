// Package checker implements the schedule update checker.
//
// A Checker owns the baseline snapshot. Each check fetches the published
// snapshot, compares its generation stamp with the baseline, raises a "new
// weeks" or "week updated" notification when it differs, and replaces the
// baseline. Failed checks leave the baseline alone and are retried only by the
// next scheduled tick.
package checker
