// Package baseline persists the last seen schedule snapshot.
//
// The FileRepository stores and loads the baseline as JSON on disk so a
// restarted daemon diffs against what it already announced instead of
// treating the first fetch as news.
package baseline
