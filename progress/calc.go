/*
Package progress computes RAG status, YTD figures, variance, and forecasts
from a target and its progress-update ledger.

PURPOSE:
  This is the calculation engine behind every dashboard and drilldown
  figure. Nothing here is persisted: all derived values are recomputed
  from the update ledger at read time.

KEY CONCEPTS:
  - YTD target: the share of the annual target attributable to elapsed
    time, prorated by the target's periodicity.
  - RAG: GREEN/AMBER/RED against per-target thresholds, with GREY for
    "no data yet". No data is never conflated with failing.
  - Forecast (EAC): an explicit override on the latest update wins;
    otherwise linear extrapolation from YTD actuals.

DESIGN PRINCIPLES:
  1. Pure functions over explicit inputs: callers fetch the updates, the
     calculator never touches a store.
  2. Degrade, don't raise: zero denominators return zero, incomplete
     targets return zero/GREY. These functions run from half-built admin
     forms as well as dashboards.
  3. Exact arithmetic: decimal.Decimal throughout.

SEE ALSO:
  - evidence.go: sustained Amber/Red evidence escalation
  - service.go: the draft/submit/approve workflow around the ledger
*/
package progress

import (
	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

// =============================================================================
// RAG CLASSIFICATION
// =============================================================================

type RAG string

const (
	RAGGreen RAG = "GREEN"
	RAGAmber RAG = "AMBER"
	RAGRed   RAG = "RED"
	RAGGrey  RAG = "GREY" // no data recorded; distinct from RED
)

// IsTracked reports whether the status carries actual data.
func (r RAG) IsTracked() bool { return r == RAGGreen || r == RAGAmber || r == RAGRed }

var (
	twelve = decimal.NewFromInt(12)
	four   = decimal.NewFromInt(4)
	oneHun = decimal.NewFromInt(100)
)

// =============================================================================
// YTD FIGURES
// =============================================================================

// YTDTargetValue prorates the annual target value by elapsed time:
//
//	ANNUAL    value * elapsedDays / totalDays
//	MONTHLY   value / 12 * monthsElapsed
//	QUARTERLY value / 4 * quartersElapsed
//	MILESTONE full value, no proration
//
// A target without a value degrades to zero.
func YTDTargetValue(t plan.Target, fy fiscal.FinancialYear, asOf fiscal.Date) decimal.Decimal {
	if t.Value.IsZero() {
		return decimal.Zero
	}
	switch t.Periodicity {
	case plan.Annual:
		total := fy.TotalDays()
		if total == 0 {
			return decimal.Zero
		}
		elapsed := fy.ElapsedDays(asOf)
		return t.Value.Mul(decimal.NewFromInt(int64(elapsed))).
			Div(decimal.NewFromInt(int64(total)))
	case plan.Monthly:
		m := fiscal.MonthsElapsed(fy, asOf)
		return t.Value.Div(twelve).Mul(decimal.NewFromInt(int64(m)))
	case plan.Quarterly:
		q := fiscal.QuartersElapsed(fy, asOf)
		return t.Value.Div(four).Mul(decimal.NewFromInt(int64(q)))
	default:
		// Milestone targets are all-or-nothing.
		return t.Value
	}
}

// SumActualsYTD sums actual values across active updates whose period end
// falls inside [fy.Start, min(fy.End, asOf)].
func SumActualsYTD(updates []plan.ProgressUpdate, fy fiscal.FinancialYear, asOf fiscal.Date) decimal.Decimal {
	cutoff := fiscal.MinDate(fy.End, asOf)
	total := decimal.Zero
	for _, u := range updates {
		if !u.State.IsActive() {
			continue
		}
		if u.PeriodEnd.AfterOrEqual(fy.Start) && u.PeriodEnd.BeforeOrEqual(cutoff) {
			total = total.Add(u.ActualValue)
		}
	}
	return total
}

// LatestUpdateInFY returns the active update with the latest period end
// inside the year window, or nil.
func LatestUpdateInFY(updates []plan.ProgressUpdate, fy fiscal.FinancialYear, asOf fiscal.Date) *plan.ProgressUpdate {
	cutoff := fiscal.MinDate(fy.End, asOf)
	var latest *plan.ProgressUpdate
	for i := range updates {
		u := &updates[i]
		if !u.State.IsActive() {
			continue
		}
		if u.PeriodEnd.Before(fy.Start) || u.PeriodEnd.After(cutoff) {
			continue
		}
		if latest == nil || u.PeriodEnd.After(latest.PeriodEnd) {
			latest = u
		}
	}
	return latest
}

// =============================================================================
// PERCENT / RAG / VARIANCE
// =============================================================================

// ComputePercent returns ytdActual as a percentage of ytdTarget. A zero
// target yields zero by contract, never a division error.
func ComputePercent(ytdActual, ytdTarget decimal.Decimal) decimal.Decimal {
	if ytdTarget.IsZero() {
		return decimal.Zero
	}
	return ytdActual.Div(ytdTarget).Mul(oneHun)
}

// ComputeRAGFromPercent classifies a percent-complete figure. Thresholds
// come from the target when supplied, else the 95/80 defaults.
func ComputeRAGFromPercent(percent decimal.Decimal, t *plan.Target) RAG {
	green, amber := plan.DefaultGreenThreshold, plan.DefaultAmberThreshold
	if t != nil {
		green, amber = t.Thresholds()
	}
	switch {
	case percent.GreaterThanOrEqual(green):
		return RAGGreen
	case percent.GreaterThanOrEqual(amber):
		return RAGAmber
	default:
		return RAGRed
	}
}

// TargetRAG classifies a target from its ledger. GREY when the target has
// no active updates in the window or no meaningful YTD target.
func TargetRAG(t plan.Target, updates []plan.ProgressUpdate, fy fiscal.FinancialYear, asOf fiscal.Date) RAG {
	if LatestUpdateInFY(updates, fy, asOf) == nil {
		return RAGGrey
	}
	ytdTarget := YTDTargetValue(t, fy, asOf)
	if ytdTarget.IsZero() {
		return RAGGrey
	}
	percent := ComputePercent(SumActualsYTD(updates, fy, asOf), ytdTarget)
	return ComputeRAGFromPercent(percent, &t)
}

// VarianceAbsolute is YTD actual minus YTD target.
func VarianceAbsolute(ytdActual, ytdTarget decimal.Decimal) decimal.Decimal {
	return ytdActual.Sub(ytdTarget)
}

// VariancePercent is the variance as a share of the YTD target; zero
// target yields zero.
func VariancePercent(ytdActual, ytdTarget decimal.Decimal) decimal.Decimal {
	if ytdTarget.IsZero() {
		return decimal.Zero
	}
	return ytdActual.Sub(ytdTarget).Div(ytdTarget).Mul(oneHun)
}

// =============================================================================
// FORECAST (ESTIMATE AT COMPLETION)
// =============================================================================

// ComputeForecastValue returns the estimate-at-completion for a target.
// An explicit forecast on the most recent in-year update wins; otherwise
// the YTD actual is extrapolated linearly over the full year. Zero elapsed
// time forecasts zero.
func ComputeForecastValue(t plan.Target, updates []plan.ProgressUpdate, ytdActual decimal.Decimal, fy fiscal.FinancialYear, asOf fiscal.Date) decimal.Decimal {
	if latest := LatestUpdateInFY(updates, fy, asOf); latest != nil && latest.ForecastValue != nil {
		return *latest.ForecastValue
	}

	switch t.Periodicity {
	case plan.Monthly:
		m := fiscal.MonthsElapsed(fy, asOf)
		if m <= 0 {
			return decimal.Zero
		}
		return ytdActual.Div(decimal.NewFromInt(int64(m))).Mul(twelve)
	case plan.Quarterly:
		q := fiscal.QuartersElapsed(fy, asOf)
		if q <= 0 {
			return decimal.Zero
		}
		return ytdActual.Div(decimal.NewFromInt(int64(q))).Mul(four)
	default:
		elapsed := fy.ElapsedDays(asOf)
		if elapsed <= 0 {
			return decimal.Zero
		}
		return ytdActual.Div(decimal.NewFromInt(int64(elapsed))).
			Mul(decimal.NewFromInt(int64(fy.TotalDays())))
	}
}
