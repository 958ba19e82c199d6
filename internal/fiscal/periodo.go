package fiscal

import (
	"fmt"
	"time"
)

// Periodo identifies a calendar-month declaration window ("YYYY-MM").

// PeriodoActual returns the period token for the given time.
func PeriodoActual(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// RangoPeriodo parses a "YYYY-MM" token into the inclusive start and end
// instants of the month (end is the last nanosecond of the last day).
func RangoPeriodo(periodo string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", periodo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("periodo invalido %q: %w", periodo, err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end, nil
}
