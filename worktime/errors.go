package worktime

import "errors"

var (
	// ErrInvalidShiftConfig is returned by Provider.Save and ShiftConfig.Calendar
	// when a shift configuration is unparseable or its boundaries are out of order.
	// The read path never surfaces it; see Provider.Calendar.
	ErrInvalidShiftConfig = errors.New("invalid shift configuration")

	// ErrInvalidClock is returned for time-of-day strings that are not HH:mm.
	ErrInvalidClock = errors.New("invalid time of day")

	// ErrInvalidDate is returned for date strings that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)
