/*
Package spend aggregates planned vs actual cost for plan items.

PURPOSE:
  Answers "how much of the budget is gone, and is spend running ahead of
  delivery?". Planned budget is the static input+output cost on the plan
  item; actual spend is summed from active cost lines whose period falls
  inside the financial-year window. Nothing is persisted; figures are
  recomputed on each read.
*/
package spend

import (
	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

// AlignmentGapPoints is the spend-vs-progress gap (in percentage points)
// beyond which the alignment flag raises.
var AlignmentGapPoints = decimal.NewFromInt(20)

var hundred = decimal.NewFromInt(100)

// ItemSpend is the aggregated spend picture for one plan item.
type ItemSpend struct {
	Planned  decimal.Decimal
	Actual   decimal.Decimal
	SpendPct decimal.Decimal
}

// ComputeItemSpend sums spend for a plan item within the year window.
// Cost lines count when their whole [start, end] period lies inside
// [fy.Start, min(fy.End, asOf)] and they are active. Zero planned budget
// yields a zero spend percentage by contract.
func ComputeItemSpend(item plan.OperationalPlanItem, lines []plan.CostLine, fy fiscal.FinancialYear, asOf fiscal.Date) ItemSpend {
	planned := item.TotalBudget()
	cutoff := fiscal.MinDate(fy.End, asOf)

	actual := decimal.Zero
	for _, cl := range lines {
		if !cl.State.IsActive() || cl.PlanItemID != item.ID {
			continue
		}
		if cl.CostPeriodStart.AfterOrEqual(fy.Start) && cl.CostPeriodEnd.BeforeOrEqual(cutoff) {
			actual = actual.Add(cl.ActualSpend)
		}
	}

	pct := decimal.Zero
	if !planned.IsZero() {
		pct = actual.Div(planned).Mul(hundred)
	}
	return ItemSpend{Planned: planned, Actual: actual, SpendPct: pct}
}

// AlignmentFlag reports whether money is being spent materially faster
// than output is delivered: spend percentage exceeding progress percentage
// by more than the gap threshold.
func AlignmentFlag(spendPct, progressPct decimal.Decimal) bool {
	return spendPct.Sub(progressPct).GreaterThan(AlignmentGapPoints)
}
