/*
Package worktime models the working calendar and measures business time.

PURPOSE:
  Production stages are timed in "business minutes": only minutes that fall
  inside the configured shift windows, on weekdays that are not holidays, are
  counted. This package holds the calendar value object, the provider that
  loads it from storage, and the pure calculator that integrates a wall-clock
  interval against it.

KEY CONCEPTS:
  - Clock: a time of day, in minutes since midnight
  - Calendar: morning and afternoon shift windows + holidays + time zone
  - ShiftConfig: the persisted "HH:mm" form of the shift windows
  - Date: a civil date, used for holidays and due dates

INVARIANT:
  MorningStart < MorningEnd < AfternoonStart < AfternoonEnd

SEE ALSO:
  - elapsed.go: ElapsedBusinessMinutes
  - provider.go: cached, fail-soft calendar loading
  - holiday.go: holiday sets and the default Brazilian calendar
*/
package worktime

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// CLOCK - Time of day in whole minutes
// =============================================================================

// Clock is a time of day expressed as minutes since midnight (0..1440).
type Clock int

const minutesPerDay = 24 * 60

// NewClock builds a clock from hour and minute.
func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ClockOf returns the wall-clock minute of t in loc. Seconds are dropped.
func ClockOf(t time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return NewClock(local.Hour(), local.Minute())
}

// ParseClock reads a 24-hour "HH:mm" string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// String renders the zero-padded "HH:mm" form.
func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// =============================================================================
// CALENDAR - Immutable snapshot used by one calculation
// =============================================================================

// Calendar is the working calendar: two shift windows per business day.
type Calendar struct {
	MorningStart   Clock
	MorningEnd     Clock
	AfternoonStart Clock
	AfternoonEnd   Clock

	Holidays HolidaySet

	// Location defines which wall clock "calendar-local" refers to.
	// Nil means time.Local.
	Location *time.Location
}

// Default shift windows: 07:00-12:00 and 13:00-17:00.
var (
	DefaultMorningStart   = NewClock(7, 0)
	DefaultMorningEnd     = NewClock(12, 0)
	DefaultAfternoonStart = NewClock(13, 0)
	DefaultAfternoonEnd   = NewClock(17, 0)
)

// DefaultCalendar returns the hard-coded fallback calendar with no holidays.
func DefaultCalendar() Calendar {
	return Calendar{
		MorningStart:   DefaultMorningStart,
		MorningEnd:     DefaultMorningEnd,
		AfternoonStart: DefaultAfternoonStart,
		AfternoonEnd:   DefaultAfternoonEnd,
	}
}

// Validate checks the shift ordering invariant.
func (c Calendar) Validate() error {
	if c.MorningStart < 0 || c.AfternoonEnd > minutesPerDay {
		return fmt.Errorf("%w: windows must lie within one day", ErrInvalidShiftConfig)
	}
	if !(c.MorningStart < c.MorningEnd && c.MorningEnd < c.AfternoonStart && c.AfternoonStart < c.AfternoonEnd) {
		return fmt.Errorf("%w: expected morningStart < morningEnd < afternoonStart < afternoonEnd, got %s-%s %s-%s",
			ErrInvalidShiftConfig, c.MorningStart, c.MorningEnd, c.AfternoonStart, c.AfternoonEnd)
	}
	return nil
}

// MinutesPerDay is the number of business minutes in a full business day.
func (c Calendar) MinutesPerDay() int {
	return int(c.MorningEnd-c.MorningStart) + int(c.AfternoonEnd-c.AfternoonStart)
}

// IsBusinessDay is true for weekdays that are not holidays.
func (c Calendar) IsBusinessDay(d Date) bool {
	if d.IsWeekend() {
		return false
	}
	return !c.Holidays.Contains(d)
}

// Shifts returns the persisted form of the shift windows.
func (c Calendar) Shifts() ShiftConfig {
	return ShiftConfig{
		MorningStart:   c.MorningStart.String(),
		MorningEnd:     c.MorningEnd.String(),
		AfternoonStart: c.AfternoonStart.String(),
		AfternoonEnd:   c.AfternoonEnd.String(),
	}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// =============================================================================
// SHIFT CONFIG - Persisted shape
// =============================================================================

// ShiftConfig is the stored form of the shift windows.
type ShiftConfig struct {
	MorningStart   string `json:"morningStart" yaml:"morning_start"`
	MorningEnd     string `json:"morningEnd" yaml:"morning_end"`
	AfternoonStart string `json:"afternoonStart" yaml:"afternoon_start"`
	AfternoonEnd   string `json:"afternoonEnd" yaml:"afternoon_end"`
}

// DefaultShiftConfig is the stored form of DefaultCalendar.
func DefaultShiftConfig() ShiftConfig { return DefaultCalendar().Shifts() }

// Calendar parses and validates the config. Holidays and location are left empty.
func (s ShiftConfig) Calendar() (Calendar, error) {
	var (
		cal Calendar
		err error
	)
	fields := []struct {
		raw string
		dst *Clock
	}{
		{s.MorningStart, &cal.MorningStart},
		{s.MorningEnd, &cal.MorningEnd},
		{s.AfternoonStart, &cal.AfternoonStart},
		{s.AfternoonEnd, &cal.AfternoonEnd},
	}
	for _, f := range fields {
		if *f.dst, err = ParseClock(f.raw); err != nil {
			return Calendar{}, fmt.Errorf("%w: %v", ErrInvalidShiftConfig, err)
		}
	}
	if err := cal.Validate(); err != nil {
		return Calendar{}, err
	}
	return cal, nil
}

// ParseShiftConfig decodes the persisted JSON form.
func ParseShiftConfig(raw []byte) (ShiftConfig, error) {
	var s ShiftConfig
	if err := json.Unmarshal(raw, &s); err != nil {
		return ShiftConfig{}, fmt.Errorf("%w: %v", ErrInvalidShiftConfig, err)
	}
	return s, nil
}

// Encode returns the persisted JSON form.
func (s ShiftConfig) Encode() ([]byte, error) { return json.Marshal(s) }
