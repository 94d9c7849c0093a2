package plan_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestTargetValidate(t *testing.T) {
	tgt := plan.NewTarget("item-1", "schools connected", d("120"))
	require.NoError(t, tgt.Validate())

	tgt.GreenThreshold = d("70")
	tgt.AmberThreshold = d("80")
	assert.Error(t, tgt.Validate(), "green below amber must fail")

	tgt.GreenThreshold = d("120")
	tgt.AmberThreshold = d("80")
	assert.Error(t, tgt.Validate(), "threshold above 100 must fail")

	tgt.GreenThreshold = d("95")
	tgt.Periodicity = "WEEKLY"
	assert.Error(t, tgt.Validate(), "unknown periodicity must fail")
}

func TestTargetThresholdsDefaultWhenUnset(t *testing.T) {
	var tgt plan.Target
	green, amber := tgt.Thresholds()
	assert.True(t, green.Equal(d("95")))
	assert.True(t, amber.Equal(d("80")))
}

func TestTargetOverdueForUpdate(t *testing.T) {
	tgt := plan.NewTarget("item-1", "n", d("10"))
	today := fiscal.NewDate(2024, time.August, 1)

	// No due date: never overdue.
	assert.False(t, tgt.OverdueForUpdate(nil, today))

	tgt.DueDate = fiscal.NewDate(2024, time.June, 30)
	assert.True(t, tgt.OverdueForUpdate(nil, today), "past due with no updates")

	// An existing update suppresses the overdue flag regardless of age.
	latest := &plan.ProgressUpdate{PeriodEnd: fiscal.NewDate(2024, time.April, 30)}
	assert.False(t, tgt.OverdueForUpdate(latest, today))
}

func TestCostLineRatios(t *testing.T) {
	cl := plan.CostLine{
		BudgetedAmount:  d("1000.00"),
		CommittedAmount: d("400.00"),
		ActualSpend:     d("850.00"),
	}

	assert.True(t, cl.VarianceAmount().Equal(d("-150.00")))
	assert.True(t, cl.SpendPercentage().Equal(d("85")))
	assert.True(t, cl.CommitmentPercentage().Equal(d("40")))
	assert.True(t, cl.RemainingBudget().Equal(d("150.00")))
	assert.False(t, cl.IsOverspent())
	assert.Equal(t, plan.SpendHigh, cl.Status())
}

func TestCostLineZeroBudgetIsNotAnError(t *testing.T) {
	cl := plan.CostLine{ActualSpend: d("50")}

	assert.True(t, cl.VariancePercentage().IsZero())
	assert.True(t, cl.SpendPercentage().IsZero())
	assert.True(t, cl.CommitmentPercentage().IsZero())
	assert.True(t, cl.IsOverspent())
	assert.Equal(t, plan.SpendLow, cl.Status())
}

func TestCostLineStatusBuckets(t *testing.T) {
	tests := []struct {
		spend string
		want  plan.SpendStatus
	}{
		{"1200", plan.SpendOverspent},
		{"1000", plan.SpendFullySpent},
		{"800", plan.SpendHigh},
		{"500", plan.SpendModerate},
		{"100", plan.SpendLow},
	}
	for _, tt := range tests {
		cl := plan.CostLine{BudgetedAmount: d("1000"), ActualSpend: d(tt.spend)}
		assert.Equal(t, tt.want, cl.Status(), "spend %s", tt.spend)
	}
}
