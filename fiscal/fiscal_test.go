package fiscal_test

import (
	"testing"
	"time"

	"github.com/BigAlzz/smon/fiscal"
)

func fy2024() fiscal.FinancialYear {
	return fiscal.FinancialYear{
		YearCode: "FY 2024/25",
		Start:    fiscal.NewDate(2024, time.April, 1),
		End:      fiscal.NewDate(2025, time.March, 31),
	}
}

// =============================================================================
// MONTHS / QUARTERS ELAPSED
// =============================================================================

func TestMonthsElapsed(t *testing.T) {
	fy := fy2024()

	tests := []struct {
		name string
		asOf fiscal.Date
		want int
	}{
		{"before year start", fiscal.NewDate(2024, time.March, 31), 0},
		{"first day of year", fiscal.NewDate(2024, time.April, 1), 1},
		{"mid first month", fiscal.NewDate(2024, time.April, 15), 1},
		{"first day of second month", fiscal.NewDate(2024, time.May, 1), 2},
		{"mid year", fiscal.NewDate(2024, time.September, 30), 6},
		{"last day of year", fiscal.NewDate(2025, time.March, 31), 12},
		{"past year end clamps", fiscal.NewDate(2025, time.June, 1), 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fiscal.MonthsElapsed(fy, tt.asOf); got != tt.want {
				t.Errorf("MonthsElapsed(%s) = %d, want %d", tt.asOf, got, tt.want)
			}
		})
	}
}

func TestQuartersElapsed(t *testing.T) {
	fy := fy2024()

	tests := []struct {
		asOf fiscal.Date
		want int
	}{
		{fiscal.NewDate(2024, time.March, 1), 0},
		{fiscal.NewDate(2024, time.April, 15), 1},
		{fiscal.NewDate(2024, time.June, 30), 1},
		{fiscal.NewDate(2024, time.July, 1), 2},
		{fiscal.NewDate(2024, time.December, 15), 3},
		{fiscal.NewDate(2025, time.January, 1), 4},
		{fiscal.NewDate(2025, time.December, 1), 4}, // clamped
	}

	for _, tt := range tests {
		if got := fiscal.QuartersElapsed(fy, tt.asOf); got != tt.want {
			t.Errorf("QuartersElapsed(%s) = %d, want %d", tt.asOf, got, tt.want)
		}
	}
}

// =============================================================================
// QUARTER BOUNDARIES
// =============================================================================

func TestQuarterEndFor_MidApril(t *testing.T) {
	// GIVEN: FY 2024-04-01 .. 2025-03-31
	// WHEN: asking for the quarter end of 15 April 2024
	// THEN: 30 June 2024
	got := fiscal.QuarterEndFor(fy2024(), fiscal.NewDate(2024, time.April, 15))
	want := fiscal.NewDate(2024, time.June, 30)
	if !got.Equal(want) {
		t.Errorf("QuarterEndFor = %s, want %s", got, want)
	}
}

func TestQuarterEndFor_BeforeYearStart_IsFirstQuarterEnd(t *testing.T) {
	got := fiscal.QuarterEndFor(fy2024(), fiscal.NewDate(2024, time.January, 10))
	want := fiscal.NewDate(2024, time.June, 30)
	if !got.Equal(want) {
		t.Errorf("QuarterEndFor before start = %s, want first quarter end %s", got, want)
	}
}

func TestQuarterEndFor_LastQuarterClampedToYearEnd(t *testing.T) {
	got := fiscal.QuarterEndFor(fy2024(), fiscal.NewDate(2025, time.February, 10))
	want := fiscal.NewDate(2025, time.March, 31)
	if !got.Equal(want) {
		t.Errorf("QuarterEndFor Q4 = %s, want %s", got, want)
	}
}

// =============================================================================
// QUARTER LOCK
// =============================================================================

func TestIsPeriodLocked_GraceWindow(t *testing.T) {
	fy := fy2024()
	cfg := fiscal.LockConfig{Enabled: true, GraceDays: 14}

	periodEnd := fiscal.NewDate(2024, time.May, 31) // Q1
	qEnd := fiscal.QuarterEndFor(fy, periodEnd)     // 2024-06-30

	if fiscal.IsPeriodLocked(fy, periodEnd, qEnd.AddDays(13), cfg) {
		t.Error("period should not be locked 13 days after quarter end")
	}
	if fiscal.IsPeriodLocked(fy, periodEnd, qEnd.AddDays(14), cfg) {
		t.Error("period should not be locked exactly at grace expiry")
	}
	if !fiscal.IsPeriodLocked(fy, periodEnd, qEnd.AddDays(15), cfg) {
		t.Error("period should be locked 15 days after quarter end")
	}
}

func TestIsPeriodLocked_DisabledNeverLocks(t *testing.T) {
	fy := fy2024()
	cfg := fiscal.LockConfig{Enabled: false, GraceDays: 14}

	farFuture := fiscal.NewDate(2030, time.January, 1)
	if fiscal.IsPeriodLocked(fy, fiscal.NewDate(2024, time.May, 31), farFuture, cfg) {
		t.Error("disabled lock config must never lock")
	}
}

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		start  fiscal.Date
		months int
		want   fiscal.Date
	}{
		{fiscal.NewDate(2024, time.January, 31), 1, fiscal.NewDate(2024, time.February, 29)},
		{fiscal.NewDate(2023, time.January, 31), 1, fiscal.NewDate(2023, time.February, 28)},
		{fiscal.NewDate(2024, time.April, 1), 3, fiscal.NewDate(2024, time.July, 1)},
		{fiscal.NewDate(2024, time.November, 30), 3, fiscal.NewDate(2025, time.February, 28)},
		{fiscal.NewDate(2024, time.July, 15), -4, fiscal.NewDate(2024, time.March, 15)},
	}

	for _, tt := range tests {
		if got := tt.start.AddMonths(tt.months); !got.Equal(tt.want) {
			t.Errorf("%s.AddMonths(%d) = %s, want %s", tt.start, tt.months, got, tt.want)
		}
	}
}

func TestElapsedDays(t *testing.T) {
	fy := fy2024()

	if got := fy.ElapsedDays(fiscal.NewDate(2024, time.March, 1)); got != 0 {
		t.Errorf("ElapsedDays before start = %d, want 0", got)
	}
	if got := fy.ElapsedDays(fiscal.NewDate(2024, time.April, 1)); got != 1 {
		t.Errorf("ElapsedDays on start day = %d, want 1", got)
	}
	if got := fy.ElapsedDays(fiscal.NewDate(2026, time.January, 1)); got != fy.TotalDays() {
		t.Errorf("ElapsedDays past end = %d, want %d", got, fy.TotalDays())
	}
	if got := fy.TotalDays(); got != 365 {
		t.Errorf("TotalDays = %d, want 365", got)
	}
}
