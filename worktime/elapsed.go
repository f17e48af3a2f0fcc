package worktime

import (
	"fmt"
	"time"
)

// =============================================================================
// BUSINESS-TIME CALCULATOR
// =============================================================================

// ElapsedBusinessMinutes counts the minutes between start and end that fall
// inside cal's shift windows on business days.
//
// The result is never negative: end <= start yields 0. Both instants are read
// on cal's wall clock, so the first and last days are partial days and every
// business day strictly between them counts cal.MinutesPerDay().
func ElapsedBusinessMinutes(start, end time.Time, cal Calendar) int {
	if !end.After(start) {
		return 0
	}

	loc := cal.location()
	first, last := DateOf(start, loc), DateOf(end, loc)
	startClock, endClock := ClockOf(start, loc), ClockOf(end, loc)

	if first.Equal(last) {
		if !cal.IsBusinessDay(first) {
			return 0
		}
		return cal.overlap(startClock, endClock)
	}

	total := 0
	if cal.IsBusinessDay(first) {
		total += cal.overlap(startClock, cal.AfternoonEnd)
	}
	perDay := cal.MinutesPerDay()
	for d := first.AddDays(1); d.Before(last); d = d.AddDays(1) {
		if cal.IsBusinessDay(d) {
			total += perDay
		}
	}
	if cal.IsBusinessDay(last) {
		total += cal.overlap(cal.MorningStart, endClock)
	}
	return total
}

// overlap sums the intersection of [a, b] with both shift windows.
// Bounds outside every window contribute nothing.
func (c Calendar) overlap(a, b Clock) int {
	return clamp(a, b, c.MorningStart, c.MorningEnd) + clamp(a, b, c.AfternoonStart, c.AfternoonEnd)
}

func clamp(a, b, wStart, wEnd Clock) int {
	lo, hi := a, b
	if wStart > lo {
		lo = wStart
	}
	if wEnd < hi {
		hi = wEnd
	}
	if hi <= lo {
		return 0
	}
	return int(hi - lo)
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatMinutes renders business minutes for people: "5h 30min", "2h", "45min".
// Negative values render as "0min".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		return "0min"
	}
	hours, rest := minutes/60, minutes%60
	switch {
	case hours == 0:
		return fmt.Sprintf("%dmin", rest)
	case rest == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dmin", hours, rest)
	}
}
