package worktime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// 2025-03-10 is a Monday with no holiday in the week.
func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

func defaultUTC() worktime.Calendar {
	cal := worktime.DefaultCalendar()
	cal.Location = time.UTC
	return cal
}

// =============================================================================
// SAME-DAY
// =============================================================================

func TestElapsed_SameDay(t *testing.T) {
	cal := defaultUTC()

	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"inside morning", at(10, 9, 0), at(10, 11, 0), 120},
		{"across lunch", at(10, 11, 30), at(10, 13, 30), 60},
		{"inside lunch", at(10, 12, 10), at(10, 12, 50), 0},
		{"before shift", at(10, 5, 0), at(10, 6, 30), 0},
		{"after shift", at(10, 17, 30), at(10, 22, 0), 0},
		{"whole day wider than shifts", at(10, 0, 0), at(10, 23, 59), 540},
		{"starts early ends mid afternoon", at(10, 6, 0), at(10, 14, 0), 300 + 60},
		{"scenario lavagem", at(10, 8, 0), at(10, 14, 0), 300},
		{"same minute", at(10, 9, 0), at(10, 9, 0).Add(40 * time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, worktime.ElapsedBusinessMinutes(tt.start, tt.end, cal))
		})
	}
}

func TestElapsed_NeverNegative(t *testing.T) {
	cal := defaultUTC()

	assert.Equal(t, 0, worktime.ElapsedBusinessMinutes(at(10, 9, 0), at(10, 9, 0), cal))
	assert.Equal(t, 0, worktime.ElapsedBusinessMinutes(at(12, 9, 0), at(10, 9, 0), cal))
}

// =============================================================================
// MULTI-DAY
// =============================================================================

func TestElapsed_MultiDay_Additive(t *testing.T) {
	cal := defaultUTC()

	// Mon 09:00 -> Wed 11:00
	first := worktime.ElapsedBusinessMinutes(at(10, 9, 0), at(10, 17, 0), cal)
	last := worktime.ElapsedBusinessMinutes(at(12, 7, 0), at(12, 11, 0), cal)
	assert.Equal(t, 420, first)
	assert.Equal(t, 240, last)

	got := worktime.ElapsedBusinessMinutes(at(10, 9, 0), at(12, 11, 0), cal)
	assert.Equal(t, first+cal.MinutesPerDay()+last, got)
	assert.Equal(t, 1200, got)
}

func TestElapsed_WeekendExcluded(t *testing.T) {
	cal := defaultUTC()

	// Saturday and Sunday contribute nothing however long the span.
	assert.Equal(t, 0, worktime.ElapsedBusinessMinutes(at(15, 0, 0), at(15, 23, 0), cal))
	assert.Equal(t, 0, worktime.ElapsedBusinessMinutes(at(15, 8, 0), at(16, 16, 0), cal))

	// Fri 16:00 -> Mon 08:00: one hour each side.
	assert.Equal(t, 120, worktime.ElapsedBusinessMinutes(at(14, 16, 0), at(17, 8, 0), cal))
}

func TestElapsed_HolidayExcluded(t *testing.T) {
	cal := defaultUTC()
	cal.Holidays = worktime.NewHolidaySet(worktime.NewDate(2025, time.March, 11))

	// Tuesday is a holiday: no full middle day.
	assert.Equal(t, 420+240, worktime.ElapsedBusinessMinutes(at(10, 9, 0), at(12, 11, 0), cal))
	// Holiday as a single day.
	assert.Equal(t, 0, worktime.ElapsedBusinessMinutes(at(11, 7, 0), at(11, 17, 0), cal))
	// Holiday as the last day.
	assert.Equal(t, 420, worktime.ElapsedBusinessMinutes(at(10, 9, 0), at(11, 16, 0), cal))
}

func TestElapsed_OffHoursBoundaries(t *testing.T) {
	cal := defaultUTC()

	// Mon 18:00 -> Tue 07:30: nothing Monday, 30 minutes Tuesday.
	assert.Equal(t, 30, worktime.ElapsedBusinessMinutes(at(10, 18, 0), at(11, 7, 30), cal))
	// Mon 12:30 (lunch) -> Tue 12:30 (lunch): afternoon + morning.
	assert.Equal(t, 240+300, worktime.ElapsedBusinessMinutes(at(10, 12, 30), at(11, 12, 30), cal))
}

func TestElapsed_UsesCalendarLocation(t *testing.T) {
	cal := worktime.DefaultCalendar()
	cal.Location = time.FixedZone("BRT", -3*60*60)

	// 12:00Z-14:00Z is 09:00-11:00 on the local wall clock.
	start := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, 120, worktime.ElapsedBusinessMinutes(start, end, cal))

	// 02:00Z Tuesday is still Monday 23:00 locally.
	late := time.Date(2025, time.March, 11, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, 180+240, worktime.ElapsedBusinessMinutes(start, late, cal))
}

func TestElapsed_CustomShifts(t *testing.T) {
	cal := worktime.Calendar{
		MorningStart:   worktime.NewClock(8, 0),
		MorningEnd:     worktime.NewClock(11, 30),
		AfternoonStart: worktime.NewClock(12, 30),
		AfternoonEnd:   worktime.NewClock(18, 0),
		Location:       time.UTC,
	}

	assert.Equal(t, 210+330, cal.MinutesPerDay())
	assert.Equal(t, 60, worktime.ElapsedBusinessMinutes(at(10, 11, 0), at(10, 13, 0), cal))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestElapsed_Monotonic(t *testing.T) {
	cal := defaultUTC()
	cal.Holidays = worktime.NewHolidaySet(worktime.NewDate(2025, time.March, 12))

	starts := []time.Time{at(10, 0, 0), at(10, 11, 45), at(12, 9, 0), at(15, 10, 0)}
	for _, start := range starts {
		prev := 0
		for end := start; end.Before(start.Add(10 * 24 * time.Hour)); end = end.Add(17 * time.Minute) {
			got := worktime.ElapsedBusinessMinutes(start, end, cal)
			if !assert.GreaterOrEqual(t, got, prev, "start=%s end=%s", start, end) {
				return
			}
			prev = got
		}
	}
}

func TestElapsed_SplitIsAdditive(t *testing.T) {
	cal := defaultUTC()
	start, end := at(10, 9, 0), at(13, 15, 0)

	for mid := start; mid.Before(end); mid = mid.Add(53 * time.Minute) {
		a := worktime.ElapsedBusinessMinutes(start, mid, cal)
		b := worktime.ElapsedBusinessMinutes(mid, end, cal)
		assert.Equal(t, worktime.ElapsedBusinessMinutes(start, end, cal), a+b, "mid=%s", mid)
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "0min", worktime.FormatMinutes(-5))
	assert.Equal(t, "0min", worktime.FormatMinutes(0))
	assert.Equal(t, "45min", worktime.FormatMinutes(45))
	assert.Equal(t, "2h", worktime.FormatMinutes(120))
	assert.Equal(t, "5h 30min", worktime.FormatMinutes(330))
}
