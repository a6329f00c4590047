package core

import "time"

// Window is an inclusive time range [From, To].
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// MonthToDate is the window from the first instant of now's month through now.
func MonthToDate(now time.Time) Window {
	return Window{
		From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
		To:   now,
	}
}

// FullMonth spans the whole calendar month, ending at the last nanosecond of
// its last day.
func FullMonth(year, month int, loc *time.Location) (Window, error) {
	if month < 1 || month > 12 {
		return Window{}, ErrInvalidMonth
	}
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return Window{
		From: from,
		To:   from.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}, nil
}

// PreviousMonth returns the year and month before the given one.
func PreviousMonth(year, month int) (int, int) {
	if month <= 1 {
		return year - 1, 12
	}
	return year, month - 1
}
