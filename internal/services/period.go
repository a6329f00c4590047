// Package services provides the background jobs run by the worker: the
// monthly rollover and the limit alert consumer.
package services

import (
	"fmt"
	"time"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month int
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Before reports whether p is an earlier month than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Prev returns the month before p.
func (p Period) Prev() Period {
	if p.Month <= 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// PeriodOf returns the month containing t in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	if loc != nil {
		t = t.In(loc)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// ClosedPeriod is the most recent month that has fully ended at now.
func ClosedPeriod(now time.Time, loc *time.Location) Period {
	return PeriodOf(now, loc).Prev()
}

// RolloverDue reports whether the month closed at now still needs a
// rollover, given the last period processed. A zero last means never.
func RolloverDue(last Period, now time.Time, loc *time.Location) bool {
	if last.IsZero() {
		return true
	}
	return last.Before(ClosedPeriod(now, loc))
}
