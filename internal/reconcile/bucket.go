package reconcile

import (
	"fmt"
	"time"
)

// Granularity selects the bucket width of a reconciliation walk
type Granularity string

const (
	ByDay   Granularity = "day"
	ByWeek  Granularity = "week"
	ByMonth Granularity = "month"
)

// ParseGranularity validates a group_by query value
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case ByDay, ByWeek, ByMonth:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown group_by value %q (want day, week or month)", s)
}

// AutoGranularity picks day buckets for ranges up to 90 days and month
// buckets beyond, matching the trend endpoints that take no group_by.
func AutoGranularity(from, to time.Time) Granularity {
	if int(to.Sub(from).Hours()/24) < 90 {
		return ByDay
	}
	return ByMonth
}

// Bucket is one time window of a walk. Start and End are inclusive dates.
type Bucket struct {
	Start       time.Time
	End         time.Time
	Granularity Granularity
}

// Walk splits [from, to] into consecutive buckets. Day buckets are single
// dates; week buckets span seven days capped at the range end; month
// buckets run to the end of the calendar month, also capped.
func Walk(from, to time.Time, g Granularity) []Bucket {
	var buckets []Bucket
	current := from
	for !current.After(to) {
		var end time.Time
		switch g {
		case ByDay:
			end = current
		case ByWeek:
			end = current.AddDate(0, 0, 6)
		case ByMonth:
			firstOfNext := time.Date(current.Year(), current.Month()+1, 1, 0, 0, 0, 0, current.Location())
			end = firstOfNext.AddDate(0, 0, -1)
		}
		if end.After(to) {
			end = to
		}
		buckets = append(buckets, Bucket{Start: current, End: end, Granularity: g})
		current = end.AddDate(0, 0, 1)
	}
	return buckets
}

// Contains reports whether a timestamp falls inside the bucket window
func (b Bucket) Contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	return !t.Before(b.Start) && t.Before(b.End.AddDate(0, 0, 1))
}

// Meta returns the chart-label fields every result item of this bucket
// carries: Year/Month/Date for day buckets, Year/Week_Start/Week_End for
// week buckets, Year/Month for month buckets.
func (b Bucket) Meta() map[string]interface{} {
	switch b.Granularity {
	case ByDay:
		return map[string]interface{}{
			"Year":  b.Start.Year(),
			"Month": b.Start.Format("January"),
			"Date":  b.Start.Day(),
		}
	case ByWeek:
		return map[string]interface{}{
			"Year":       b.Start.Year(),
			"Week_Start": b.Start.Format("02-01-2006"),
			"Week_End":   b.End.Format("02-01-2006"),
		}
	default:
		return map[string]interface{}{
			"Year":  b.Start.Year(),
			"Month": b.Start.Format("January"),
		}
	}
}

// DateLabel is the single-string label used by the leave/enter series:
// "02-January-2006" for day buckets, "January 2006" otherwise.
func (b Bucket) DateLabel() string {
	if b.Granularity == ByDay {
		return b.Start.Format("02-January-2006")
	}
	return b.Start.Format("January 2006")
}
