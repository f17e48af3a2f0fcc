package worktime

import "sort"

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a non-working calendar date.
type Holiday struct {
	Date Date
	Name string // e.g. "Natal", "Tiradentes"
}

// HolidaySet is an immutable lookup of holiday dates. The zero value is empty.
type HolidaySet struct {
	days map[string]struct{}
}

// NewHolidaySet builds a set from dates.
func NewHolidaySet(dates ...Date) HolidaySet {
	s := HolidaySet{days: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		s.days[d.String()] = struct{}{}
	}
	return s
}

// HolidaySetOf builds a set from holiday records.
func HolidaySetOf(holidays []Holiday) HolidaySet {
	dates := make([]Date, len(holidays))
	for i, h := range holidays {
		dates[i] = h.Date
	}
	return NewHolidaySet(dates...)
}

// Contains reports whether d is a holiday.
func (s HolidaySet) Contains(d Date) bool {
	_, ok := s.days[d.String()]
	return ok
}

// Len returns the number of holidays.
func (s HolidaySet) Len() int { return len(s.days) }

// Dates returns the holidays in ascending order.
func (s HolidaySet) Dates() []Date {
	out := make([]Date, 0, len(s.days))
	for k := range s.days {
		out = append(out, MustParseDate(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// DefaultHolidays returns the Brazilian national holidays for 2024-2026,
// used to seed a fresh store.
func DefaultHolidays() []Holiday {
	table := []struct{ date, name string }{
		{"2024-01-01", "Confraternização Universal"},
		{"2024-02-12", "Carnaval"},
		{"2024-02-13", "Carnaval"},
		{"2024-03-29", "Sexta-feira Santa"},
		{"2024-04-21", "Tiradentes"},
		{"2024-05-01", "Dia do Trabalhador"},
		{"2024-05-30", "Corpus Christi"},
		{"2024-09-07", "Independência"},
		{"2024-10-12", "Nossa Senhora Aparecida"},
		{"2024-11-02", "Finados"},
		{"2024-11-15", "Proclamação da República"},
		{"2024-12-25", "Natal"},

		{"2025-01-01", "Confraternização Universal"},
		{"2025-03-03", "Carnaval"},
		{"2025-03-04", "Carnaval"},
		{"2025-04-18", "Sexta-feira Santa"},
		{"2025-04-21", "Tiradentes"},
		{"2025-05-01", "Dia do Trabalhador"},
		{"2025-06-19", "Corpus Christi"},
		{"2025-09-07", "Independência"},
		{"2025-10-12", "Nossa Senhora Aparecida"},
		{"2025-11-02", "Finados"},
		{"2025-11-15", "Proclamação da República"},
		{"2025-12-25", "Natal"},

		{"2026-01-01", "Confraternização Universal"},
		{"2026-02-16", "Carnaval"},
		{"2026-02-17", "Carnaval"},
		{"2026-04-03", "Sexta-feira Santa"},
		{"2026-04-21", "Tiradentes"},
		{"2026-05-01", "Dia do Trabalhador"},
		{"2026-06-04", "Corpus Christi"},
		{"2026-09-07", "Independência"},
		{"2026-10-12", "Nossa Senhora Aparecida"},
		{"2026-11-02", "Finados"},
		{"2026-11-15", "Proclamação da República"},
		{"2026-12-25", "Natal"},
	}
	out := make([]Holiday, len(table))
	for i, h := range table {
		out[i] = Holiday{Date: MustParseDate(h.date), Name: h.name}
	}
	return out
}
