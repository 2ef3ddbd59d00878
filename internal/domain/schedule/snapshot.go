package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMissingGeneratedAt is returned when a snapshot carries no generation stamp.
	ErrMissingGeneratedAt = errors.New("snapshot has no generatedAt")
	// errEmptyWeek is returned when a week identifier is null or blank.
	errEmptyWeek = errors.New("empty week identifier")
)

// Week identifies a published schedule week.
// The publisher emits ISO week numbers, sometimes quoted; both forms decode to the same Week.
type Week string

// UnmarshalJSON accepts a JSON number or a JSON string. Null leaves the week unchanged.
func (w *Week) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode week: %w", err)
		}

		s = strings.TrimSpace(s)
		if s == "" {
			return errEmptyWeek
		}

		*w = Week(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode week: %w", err)
	}

	canonical, err := canonicalNumber(n)
	if err != nil {
		return fmt.Errorf("decode week: %w", err)
	}

	*w = Week(canonical)

	return nil
}

// canonicalNumber renders a JSON number so that 10, 10.0 and 1e1 read the same.
// Integers that fit in int64 keep every digit.
func canonicalNumber(n json.Number) (string, error) {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}

	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return "", fmt.Errorf("number %s: %w", n, err)
	}

	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// stamp decodes a generation stamp published either as a JSON string or a JSON number.
// Numbers are kept in canonical decimal form; stamps are compared, never interpreted.
type stamp string

func (st *stamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode generatedAt: %w", err)
		}

		*st = stamp(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode generatedAt: %w", err)
	}

	canonical, err := canonicalNumber(n)
	if err != nil {
		return fmt.Errorf("decode generatedAt: %w", err)
	}

	*st = stamp(canonical)

	return nil
}

// Snapshot is the polled state of the published schedule.
type Snapshot struct {
	// GeneratedAt is the publisher's generation stamp, compared verbatim.
	// Numeric stamps (epoch values) are held in decimal form.
	GeneratedAt string `json:"generatedAt"`
	// Weeks lists the published weeks in publication order.
	Weeks []Week `json:"weeks"`
	// LatestWeek is the most recent week; derived from Weeks when omitted.
	LatestWeek Week `json:"latestWeek,omitempty"`
}

// UnmarshalJSON accepts generatedAt as a string or a number.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot

	var doc struct {
		plain

		GeneratedAt stamp `json:"generatedAt"`
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*s = Snapshot(doc.plain)
	s.GeneratedAt = string(doc.GeneratedAt)

	return nil
}

// Decode parses a JSON document into a Snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if strings.TrimSpace(s.GeneratedAt) == "" {
		return nil, ErrMissingGeneratedAt
	}

	for i, week := range s.Weeks {
		if week == "" {
			return nil, fmt.Errorf("week #%d: %w", i, errEmptyWeek)
		}
	}

	if s.LatestWeek == "" && len(s.Weeks) > 0 {
		s.LatestWeek = s.Weeks[len(s.Weeks)-1]
	}

	return &s, nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cloned := *s
	if s.Weeks != nil {
		cloned.Weeks = make([]Week, len(s.Weeks))
		copy(cloned.Weeks, s.Weeks)
	}

	return &cloned
}

// SameGeneration reports whether both snapshots carry the same generation stamp.
func (s *Snapshot) SameGeneration(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}

	return s.GeneratedAt == other.GeneratedAt
}

// NewWeeks returns the weeks of current absent from baseline, in current's order.
// Duplicates in current are reported once.
func NewWeeks(baseline, current *Snapshot) []Week {
	if current == nil {
		return nil
	}

	known := make(map[Week]struct{}, len(current.Weeks))
	if baseline != nil {
		for _, week := range baseline.Weeks {
			known[week] = struct{}{}
		}
	}

	var added []Week

	for _, week := range current.Weeks {
		if _, ok := known[week]; ok {
			continue
		}

		known[week] = struct{}{}
		added = append(added, week)
	}

	return added
}

// JoinWeeks renders weeks as a comma-separated list.
func JoinWeeks(weeks []Week) string {
	parts := make([]string, 0, len(weeks))
	for _, week := range weeks {
		parts = append(parts, string(week))
	}

	return strings.Join(parts, ", ")
}
