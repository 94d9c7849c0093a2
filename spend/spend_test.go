package spend_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
	"github.com/BigAlzz/smon/spend"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func fy2024() fiscal.FinancialYear {
	return fiscal.FinancialYear{
		ID:    "fy-2024",
		Start: fiscal.NewDate(2024, time.April, 1),
		End:   fiscal.NewDate(2025, time.March, 31),
	}
}

func line(item plan.PlanItemID, start, end fiscal.Date, actual string) plan.CostLine {
	return plan.CostLine{
		ID:              plan.CostLineID(plan.NewID()),
		PlanItemID:      item,
		CostType:        plan.CostOperational,
		ActualSpend:     d(actual),
		CostPeriodStart: start,
		CostPeriodEnd:   end,
		State:           plan.StateActive,
	}
}

func TestComputeItemSpend(t *testing.T) {
	fy := fy2024()
	asOf := fiscal.NewDate(2024, time.June, 30)

	item := plan.OperationalPlanItem{
		ID:         "item-1",
		InputCost:  d("600"),
		OutputCost: d("400"),
	}

	archived := line(item.ID, fiscal.NewDate(2024, time.May, 1), fiscal.NewDate(2024, time.May, 31), "500")
	archived.State = plan.StateArchived

	lines := []plan.CostLine{
		// Fully inside the window: counts.
		line(item.ID, fiscal.NewDate(2024, time.April, 1), fiscal.NewDate(2024, time.April, 30), "100"),
		// Ends past the as-of cutoff: excluded.
		line(item.ID, fiscal.NewDate(2024, time.April, 1), fiscal.NewDate(2024, time.December, 31), "900"),
		// Starts before the year: excluded.
		line(item.ID, fiscal.NewDate(2024, time.March, 1), fiscal.NewDate(2024, time.April, 30), "50"),
		// Different plan item: excluded.
		line("item-2", fiscal.NewDate(2024, time.April, 1), fiscal.NewDate(2024, time.April, 30), "70"),
		archived,
	}

	got := spend.ComputeItemSpend(item, lines, fy, asOf)
	assert.True(t, got.Planned.Equal(d("1000")), "planned %s", got.Planned)
	assert.True(t, got.Actual.Equal(d("100")), "actual %s", got.Actual)
	assert.True(t, got.SpendPct.Equal(d("10")), "pct %s", got.SpendPct)
}

func TestComputeItemSpend_ZeroBudget(t *testing.T) {
	fy := fy2024()
	item := plan.OperationalPlanItem{ID: "item-1"}
	lines := []plan.CostLine{
		line(item.ID, fiscal.NewDate(2024, time.April, 1), fiscal.NewDate(2024, time.April, 30), "100"),
	}

	got := spend.ComputeItemSpend(item, lines, fy, fiscal.NewDate(2024, time.June, 30))
	assert.True(t, got.Planned.IsZero())
	assert.True(t, got.Actual.Equal(d("100")))
	assert.True(t, got.SpendPct.IsZero(), "zero budget must not divide")
}

func TestAlignmentFlag(t *testing.T) {
	// Flag raises only when spend outruns progress by MORE than 20 points.
	assert.True(t, spend.AlignmentFlag(d("35"), d("10")))
	assert.False(t, spend.AlignmentFlag(d("30"), d("10")))
	assert.False(t, spend.AlignmentFlag(d("10"), d("35")))
}
