package worktime

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Civil calendar date, independent of any instant or time zone
// =============================================================================

// Date is a calendar date (year, month, day) with no time-of-day.
// It is stored at UTC midnight so that day arithmetic never crosses a DST edge.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a date. Out-of-range values normalize like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the civil date of instant t as seen on the wall clock of loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return NewDate(y, m, d)
}

// ParseDate reads "YYYY-MM-DD". Values carrying a time part
// ("2025-03-10T00:00:00Z") are cut to their first ten characters, so a due
// date stored as an instant is still read as the date the user typed.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if i := strings.IndexByte(s, 'T'); i >= 0 && len(s) >= 10 {
		s = s[:10]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for compiled-in tables and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) IsWeekend() bool       { wd := d.Weekday(); return wd == time.Saturday || wd == time.Sunday }

func (d Date) AddDays(n int) Date     { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// At returns the instant at minute-of-day c of this date in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, int(c), 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts anything ParseDate accepts. Empty input leaves the zero date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween counts calendar days from `from` to `to` (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int((to.t.Unix() - from.t.Unix()) / secondsPerDay)
}
