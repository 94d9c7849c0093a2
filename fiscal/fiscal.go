/*
Package fiscal provides the calendar engine for financial-year arithmetic.

PURPOSE:
  Everything date-related lives here: the day-granular Date value, the
  FinancialYear definition, and the elapsed-month/quarter calculations that
  drive YTD proration, forecasting, and quarter locking.

KEY CONCEPTS:
  - Date: a calendar day, UTC-normalized. All period boundaries are dates,
    never timestamps.
  - FinancialYear: a fixed fiscal window. The South African convention
    (1 April - 31 March) is the default, not a constraint.
  - MonthsElapsed/QuartersElapsed: ordinal position of a date within the
    year, 1-indexed and inclusive of the start month.

DESIGN PRINCIPLES:
  1. Pure functions: no clock access here; callers pass the as-of date.
  2. Clamping over errors: dates past the year end are clamped, dates
     before the start yield zero.

SEE ALSO:
  - lock.go: quarter-lock policy built on QuarterEndFor
  - progress package: YTD target proration using these functions
*/
package fiscal

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granular calendar date
// =============================================================================

// Date is a calendar day. The zero value is the zero date.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }
func (d Date) String() string    { return d.t.Format("2006-01-02") }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// AddMonths adds n calendar months, clamping the day to the end of the
// resulting month. time.AddDate would normalize Jan 31 + 1 month into
// March; period arithmetic needs Feb 28/29 instead.
func (d Date) AddMonths(n int) Date {
	y, m, day := d.t.Year(), int(d.t.Month())+n, d.t.Day()
	// Normalize month into [1, 12]
	y += (m - 1) / 12
	m = (m-1)%12 + 1
	if m < 1 {
		m += 12
		y--
	}
	if last := daysInMonth(y, time.Month(m)); day > last {
		day = last
	}
	return NewDate(y, time.Month(m), day)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns the number of whole days from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// =============================================================================
// FINANCIAL YEAR
// =============================================================================

// FinancialYear is a fixed fiscal period. At most one year is active at a
// time; the store enforces that invariant on write.
type FinancialYear struct {
	ID          string
	YearCode    string // e.g. "FY 2024/25"
	Start       Date
	End         Date
	Active      bool
	Description string
}

// NewSAFinancialYear builds a year on the South African convention:
// 1 April of startYear through 31 March of the following year.
func NewSAFinancialYear(startYear int) FinancialYear {
	return FinancialYear{
		YearCode: fmt.Sprintf("FY %d/%02d", startYear, (startYear+1)%100),
		Start:    NewDate(startYear, time.April, 1),
		End:      NewDate(startYear+1, time.March, 31),
	}
}

func (fy FinancialYear) Contains(d Date) bool {
	return d.AfterOrEqual(fy.Start) && d.BeforeOrEqual(fy.End)
}

// TotalDays returns the length of the year in days, inclusive of both ends.
func (fy FinancialYear) TotalDays() int {
	return DaysBetween(fy.Start, fy.End) + 1
}

// ElapsedDays returns days elapsed up to asOf, inclusive of the start day,
// clamped to the year. Zero before the year starts.
func (fy FinancialYear) ElapsedDays(asOf Date) int {
	if asOf.Before(fy.Start) {
		return 0
	}
	return DaysBetween(fy.Start, MinDate(asOf, fy.End)) + 1
}

// =============================================================================
// ELAPSED MONTHS / QUARTERS
// =============================================================================

// MonthsElapsed returns the ordinal month of asOf within the year:
// 1 for the start month, 12 for the last. Zero before the year starts;
// clamped to the year end after it.
func MonthsElapsed(fy FinancialYear, asOf Date) int {
	if asOf.Before(fy.Start) {
		return 0
	}
	if asOf.After(fy.End) {
		asOf = fy.End
	}
	months := (asOf.Year()-fy.Start.Year())*12 + int(asOf.Month()) - int(fy.Start.Month())
	if asOf.Day() < fy.Start.Day() {
		months--
	}
	return months + 1
}

// QuartersElapsed returns the ordinal quarter of asOf within the year,
// clamped to 4.
func QuartersElapsed(fy FinancialYear, asOf Date) int {
	m := MonthsElapsed(fy, asOf)
	q := (m + 2) / 3
	if q > 4 {
		return 4
	}
	return q
}

// QuarterEndFor returns the end date of the quarter containing asOf.
// Dates before the year start map to the first quarter; the result never
// exceeds the year end.
func QuarterEndFor(fy FinancialYear, asOf Date) Date {
	q := QuartersElapsed(fy, asOf)
	if q < 1 {
		q = 1
	}
	qStart := fy.Start.AddMonths((q - 1) * 3)
	qEnd := qStart.AddMonths(3).AddDays(-1)
	if qEnd.After(fy.End) {
		qEnd = fy.End
	}
	return qEnd
}
