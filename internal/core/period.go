package core

import (
	"fmt"
	"time"
)

// Period is a calendar month of the ledger.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates year and month.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: time.Month(month)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the month containing t in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	y, m, _ := t.In(loc).Date()
	return Period{Year: y, Month: m}
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return Invalid("month", ErrInvalidMonth)
	}
	if p.Year < 1900 || p.Year > 9999 {
		return &ValidationError{Field: "year", Reason: "out of range"}
	}
	return nil
}

// Bounds returns the half-open instant range [start, end) of the period in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// DateBounds returns the first day of the period and of the next one.
func (p Period) DateBounds() (Date, Date) {
	start := NewDate(p.Year, int(p.Month), 1)
	return start, Date{Time: start.AddDate(0, 1, 0)}
}

// Contains reports whether t falls inside the period in loc.
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	start, end := p.Bounds(loc)
	return !t.Before(start) && t.Before(end)
}

// ContainsDate reports whether the calendar date d falls inside the period.
func (p Period) ContainsDate(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// Label renders the period the way statements title it, e.g. "3/2025".
func (p Period) Label() string {
	return fmt.Sprintf("%d/%d", int(p.Month), p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
