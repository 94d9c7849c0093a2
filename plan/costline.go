package plan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
)

// =============================================================================
// COST LINE - Budget and spend record for a plan item
// =============================================================================

type CostType string

const (
	CostInput       CostType = "INPUT"
	CostOutput      CostType = "OUTPUT"
	CostOperational CostType = "OPERATIONAL"
	CostCapital     CostType = "CAPITAL"
)

type FundingSource string

const (
	FundingGovernment FundingSource = "GOVERNMENT"
	FundingDonor      FundingSource = "DONOR"
	FundingInternal   FundingSource = "INTERNAL"
	FundingOther      FundingSource = "OTHER"
)

// SpendStatus buckets a cost line by how much of its budget is gone.
type SpendStatus string

const (
	SpendOverspent  SpendStatus = "OVERSPENT"
	SpendFullySpent SpendStatus = "FULLY_SPENT"
	SpendHigh       SpendStatus = "HIGH_SPEND"
	SpendModerate   SpendStatus = "MODERATE_SPEND"
	SpendLow        SpendStatus = "LOW_SPEND"
)

// CostLine records budgeted vs committed vs actual spend for one cost item
// within a reporting window. The core only ever sums these; the ratio
// helpers below feed finance drilldown screens.
type CostLine struct {
	ID         CostLineID
	PlanItemID PlanItemID

	CostType    CostType
	Description string

	BudgetedAmount  decimal.Decimal
	CommittedAmount decimal.Decimal
	ActualSpend     decimal.Decimal

	CostPeriodStart fiscal.Date
	CostPeriodEnd   fiscal.Date

	FundingSource       FundingSource
	PurchaseOrderNumber string
	SupplierVendor      string

	State EntityState

	CreatedAt time.Time
	UpdatedAt time.Time
}

var hundred = decimal.NewFromInt(100)

// VarianceAmount is actual spend minus budget: positive means over budget.
func (c CostLine) VarianceAmount() decimal.Decimal {
	return c.ActualSpend.Sub(c.BudgetedAmount)
}

// VariancePercentage returns the variance as a share of budget.
// Zero budget yields zero, never a division error.
func (c CostLine) VariancePercentage() decimal.Decimal {
	if c.BudgetedAmount.IsZero() {
		return decimal.Zero
	}
	return c.VarianceAmount().Div(c.BudgetedAmount).Mul(hundred)
}

// CommitmentPercentage returns committed amount as a share of budget.
func (c CostLine) CommitmentPercentage() decimal.Decimal {
	if c.BudgetedAmount.IsZero() {
		return decimal.Zero
	}
	return c.CommittedAmount.Div(c.BudgetedAmount).Mul(hundred)
}

// SpendPercentage returns actual spend as a share of budget.
func (c CostLine) SpendPercentage() decimal.Decimal {
	if c.BudgetedAmount.IsZero() {
		return decimal.Zero
	}
	return c.ActualSpend.Div(c.BudgetedAmount).Mul(hundred)
}

// RemainingBudget is budget minus actual spend.
func (c CostLine) RemainingBudget() decimal.Decimal {
	return c.BudgetedAmount.Sub(c.ActualSpend)
}

func (c CostLine) IsOverspent() bool {
	return c.ActualSpend.GreaterThan(c.BudgetedAmount)
}

// Status buckets the line by spend percentage.
func (c CostLine) Status() SpendStatus {
	pct := c.SpendPercentage()
	switch {
	case pct.GreaterThanOrEqual(hundred) && c.IsOverspent():
		return SpendOverspent
	case pct.GreaterThanOrEqual(hundred):
		return SpendFullySpent
	case pct.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return SpendHigh
	case pct.GreaterThanOrEqual(decimal.NewFromInt(50)):
		return SpendModerate
	default:
		return SpendLow
	}
}
