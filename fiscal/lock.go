package fiscal

import "time"

// =============================================================================
// CLOCK - Overridable "today" for deterministic lock checks
// =============================================================================

// Clock supplies today's date. Lock decisions must be reproducible in tests
// and batch recomputation, so "now" is always injected.
type Clock interface {
	Today() Date
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Today() Date { return DateOf(time.Now()) }

// FixedClock always returns the same date.
type FixedClock struct {
	Date Date
}

func (c FixedClock) Today() Date { return c.Date }

// =============================================================================
// QUARTER LOCK - Edits to a reporting period close after a grace window
// =============================================================================

// LockConfig controls the quarter-lock policy.
type LockConfig struct {
	Enabled   bool
	GraceDays int
}

const DefaultGraceDays = 14

func DefaultLockConfig() LockConfig {
	return LockConfig{Enabled: false, GraceDays: DefaultGraceDays}
}

// IsPeriodLocked reports whether the quarter containing periodEnd is closed
// for edits. Disabled config means never locked. Otherwise the period locks
// once today is past the quarter end plus the grace window.
func IsPeriodLocked(fy FinancialYear, periodEnd, today Date, cfg LockConfig) bool {
	if !cfg.Enabled {
		return false
	}
	qEnd := QuarterEndFor(fy, periodEnd)
	return today.After(qEnd.AddDays(cfg.GraceDays))
}
