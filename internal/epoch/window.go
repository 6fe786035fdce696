// Package epoch provides canonical epoch window computation.
//
// Windows are anchored to a fixed Monday so that every caller, on every
// host, derives the same [periodStart, periodEnd) pair for a given
// timestamp. The calculator is pure: no clocks, no I/O.
package epoch

import (
	"fmt"
	"time"
)

// Anchor is the fixed reference Monday all epoch windows are counted from.
var Anchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

const millisPerDay = 24 * 60 * 60 * 1000

// Window is one canonical epoch period. PeriodEnd is exclusive.
type Window struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	PeriodIndex int64
}

// PeriodStartISO returns the window start in RFC 3339 UTC form.
func (w Window) PeriodStartISO() string {
	return w.PeriodStart.UTC().Format(time.RFC3339)
}

// PeriodEndISO returns the window end in RFC 3339 UTC form.
func (w Window) PeriodEndISO() string {
	return w.PeriodEnd.UTC().Format(time.RFC3339)
}

// ComputeWindow returns the epoch window containing ref for the given epoch
// length in days. v1 supports UTC with Monday week starts only.
//
// The reference timestamp is floored to the most recent Monday 00:00 UTC,
// the elapsed milliseconds since Anchor select a period index, and the
// window is Anchor + index*length. Any timestamp inside the same calendar
// window maps to an identical window; the exact boundary instant belongs to
// the next window.
func ComputeWindow(ref time.Time, epochLengthDays int) (Window, error) {
	if epochLengthDays <= 0 {
		return Window{}, fmt.Errorf("epoch length must be positive, got %d days", epochLengthDays)
	}

	floored := floorToMonday(ref.UTC())

	epochLengthMs := int64(epochLengthDays) * millisPerDay
	elapsedMs := floored.Sub(Anchor).Milliseconds()
	if elapsedMs < 0 {
		return Window{}, fmt.Errorf("reference time %s precedes the epoch anchor %s", ref.UTC().Format(time.RFC3339), Anchor.Format(time.RFC3339))
	}

	periodIndex := elapsedMs / epochLengthMs
	start := Anchor.Add(time.Duration(periodIndex*epochLengthMs) * time.Millisecond)
	end := start.Add(time.Duration(epochLengthMs) * time.Millisecond)

	return Window{PeriodStart: start, PeriodEnd: end, PeriodIndex: periodIndex}, nil
}

// floorToMonday truncates t to 00:00 UTC of its week's Monday.
func floorToMonday(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// time.Weekday puts Sunday at 0; shift so Monday is 0.
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}
