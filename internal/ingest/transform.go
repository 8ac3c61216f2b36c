package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RowError is one rejected input row. Row faults never abort a run; they
// are counted and reported in the run log.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// dateFormats in order of likelihood across the three feeds.
var dateFormats = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

// CleanString trims and collapses internal whitespace runs to one space.
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseDate accepts the date formats seen across source exports and
// returns a UTC midnight timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// ParseCount parses a non-negative integer counter, tolerating thousands
// separators. Empty input is zero, matching exports that omit columns.
func ParseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some exports write counters as floats ("1234.0").
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("unparseable count %q", s)
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// ParseMoney parses a currency amount, tolerating a leading $ and
// thousands separators. Empty input is zero.
func ParseMoney(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative amount %v", f)
	}
	return f, nil
}

// HeaderIndex maps lower-cased, trimmed CSV headers to their column
// positions. Lookups are case-insensitive on the caller side too.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// Field returns the named column of a record, or "" when the column is
// absent or the record is short.
func Field(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
