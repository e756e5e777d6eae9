package attendance

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME OF DAY - Wall-clock time without a date
// =============================================================================

// TimeOfDay is an offset from midnight. Shift start/end times and stored
// punch times are times of day; they only become comparable instants once
// anchored to a Day.
type TimeOfDay time.Duration

// ClockTime builds a TimeOfDay from hour/minute components.
func ClockTime(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay parses "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime(t.Hour(), t.Minute()) + TimeOfDay(time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day: %q", s)
}

// TimeOfDayOf extracts the wall-clock component of a timestamp.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second)
}

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }
func (t TimeOfDay) After(other TimeOfDay) bool  { return t > other }
func (t TimeOfDay) Duration() time.Duration     { return time.Duration(t) }

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// Ptr is a convenience for the nullable punch fields.
func (t TimeOfDay) Ptr() *TimeOfDay { return &t }

// =============================================================================
// DAY - Business day (calendar date) an attendance record belongs to
// =============================================================================

// Day is a calendar date. For night shifts it is the shift's START date
// even when the OUT punch lands on the next date.
type Day struct {
	Time time.Time
}

// NewDay constructs a Day from its components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates a timestamp to its calendar date.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay parses "2006-01-02".
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day: %q", s)
	}
	return DayOf(t), nil
}

// At anchors a time of day to this date, producing a timestamp.
func (d Day) At(t TimeOfDay) time.Time {
	return d.Time.Add(time.Duration(t))
}

func (d Day) AddDays(n int) Day          { return Day{Time: d.Time.AddDate(0, 0, n)} }
func (d Day) Before(other Day) bool      { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool       { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool       { return d.Time.Equal(other.Time) }
func (d Day) Weekday() time.Weekday      { return d.Time.Weekday() }
func (d Day) IsZero() bool               { return d.Time.IsZero() }
func (d Day) Year() int                  { return d.Time.Year() }
func (d Day) Month() time.Month          { return d.Time.Month() }
func (d Day) String() string             { return d.Time.Format("2006-01-02") }

// StartOfMonth returns the first day of the month containing d.
func (d Day) StartOfMonth() Day { return NewDay(d.Year(), d.Month(), 1) }

// EndOfMonth returns the last day of the month containing d.
func (d Day) EndOfMonth() Day {
	return Day{Time: time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// =============================================================================
// DURATION HELPERS
// =============================================================================

// durationPtr returns a pointer for strictly positive durations, nil
// otherwise. Metric fields are populated-or-absent, never zero.
func durationPtr(d time.Duration) *time.Duration {
	if d <= 0 {
		return nil
	}
	return &d
}
