package rollup_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
	"github.com/BigAlzz/smon/progress"
	"github.com/BigAlzz/smon/rollup"
	"github.com/BigAlzz/smon/store/memory"
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
		ID:       "fy-2024",
		YearCode: "FY 2024/25",
		Start:    fiscal.NewDate(2024, time.April, 1),
		End:      fiscal.NewDate(2025, time.March, 31),
		Active:   true,
	}
}

type fixture struct {
	store *memory.Store
	fy    fiscal.FinancialYear
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	fy := fy2024()
	require.NoError(t, st.SaveFinancialYear(context.Background(), fy))
	return &fixture{store: st, fy: fy}
}

func (f *fixture) addKPA(t *testing.T, id, title string) plan.KPAID {
	t.Helper()
	k := plan.KPA{ID: plan.KPAID(id), Title: title, FinancialYearID: f.fy.ID, State: plan.StateActive}
	require.NoError(t, f.store.SaveKPA(context.Background(), k))
	return k.ID
}

func (f *fixture) addItem(t *testing.T, id string, kpa plan.KPAID, unit string) plan.PlanItemID {
	t.Helper()
	item := plan.OperationalPlanItem{
		ID:                 plan.PlanItemID(id),
		KPAID:              kpa,
		Output:             "Output " + id,
		UnitSubdirectorate: unit,
		InputCost:          d("500"),
		OutputCost:         d("500"),
		State:              plan.StateActive,
	}
	require.NoError(t, f.store.SavePlanItem(context.Background(), item))
	return item.ID
}

// addMonthlyTarget wires a monthly target of 120 (YTD 30 as of 30 June).
func (f *fixture) addMonthlyTarget(t *testing.T, id string, item plan.PlanItemID) plan.TargetID {
	t.Helper()
	target := plan.NewTarget(item, "Target "+id, d("120"))
	target.ID = plan.TargetID(id)
	target.Periodicity = plan.Monthly
	require.NoError(t, f.store.SaveTarget(context.Background(), target))
	return target.ID
}

func (f *fixture) addUpdate(t *testing.T, target plan.TargetID, periodEnd fiscal.Date, actual string) {
	t.Helper()
	_, err := f.store.UpsertDraft(context.Background(), plan.ProgressUpdate{
		TargetID:    target,
		PeriodStart: periodEnd.AddDays(-29),
		PeriodEnd:   periodEnd,
		PeriodName:  periodEnd.String(),
		ActualValue: d(actual),
		State:       plan.StateActive,
	})
	require.NoError(t, err)
}

func (f *fixture) addCostLine(t *testing.T, item plan.PlanItemID, start, end fiscal.Date, actual string) {
	t.Helper()
	require.NoError(t, f.store.SaveCostLine(context.Background(), plan.CostLine{
		PlanItemID:      item,
		CostType:        plan.CostOperational,
		ActualSpend:     d(actual),
		CostPeriodStart: start,
		CostPeriodEnd:   end,
		State:           plan.StateActive,
	}))
}

// =============================================================================
// DASHBOARD: SUM THEN CLASSIFY
// =============================================================================

func TestDashboard_SumThenClassify(t *testing.T) {
	// GIVEN: one KPA, two targets: one well ahead, one far behind
	f := newFixture(t)
	asOf := fiscal.NewDate(2024, time.June, 30)

	kpa := f.addKPA(t, "kpa-1", "Service Delivery")
	item := f.addItem(t, "item-1", kpa, "")
	t1 := f.addMonthlyTarget(t, "t1", item) // YTD target 30
	t2 := f.addMonthlyTarget(t, "t2", item) // YTD target 30

	f.addUpdate(t, t1, fiscal.NewDate(2024, time.June, 30), "45") // 150%
	f.addUpdate(t, t2, fiscal.NewDate(2024, time.June, 30), "12") // 40%

	// WHEN: the dashboard sums before classifying
	agg := rollup.NewAggregator(f.store)
	dash, err := agg.DashboardFor(context.Background(), f.fy, "", asOf)
	require.NoError(t, err)
	require.Len(t, dash.Cards, 1)

	// THEN: 57/60 = 95% -> GREEN, though the worst-case vote would be RED
	card := dash.Cards[0]
	assert.True(t, card.YTDTarget.Equal(d("60")), "ytd target %s", card.YTDTarget)
	assert.True(t, card.YTDActual.Equal(d("57")))
	assert.Equal(t, progress.RAGGreen, card.RAG)
	assert.Equal(t, 1, dash.Summary.OnTrack)
}

func TestDashboard_NoDataIsGrey(t *testing.T) {
	// A KPA with targets but no recorded updates must show GREY, not RED.
	f := newFixture(t)
	kpa := f.addKPA(t, "kpa-1", "Governance")
	item := f.addItem(t, "item-1", kpa, "")
	f.addMonthlyTarget(t, "t1", item)

	agg := rollup.NewAggregator(f.store)
	dash, err := agg.DashboardFor(context.Background(), f.fy, "", fiscal.NewDate(2024, time.June, 30))
	require.NoError(t, err)
	require.Len(t, dash.Cards, 1)

	assert.Equal(t, progress.RAGGrey, dash.Cards[0].RAG)
	assert.Equal(t, 1, dash.Summary.NoData)
	assert.Equal(t, 0, dash.Summary.OffTrack)
}

func TestDashboard_OrgUnitFilter(t *testing.T) {
	f := newFixture(t)
	asOf := fiscal.NewDate(2024, time.June, 30)

	kpa := f.addKPA(t, "kpa-1", "Service Delivery")
	inUnit := f.addItem(t, "item-1", kpa, "Directorate A")
	outUnit := f.addItem(t, "item-2", kpa, "Directorate B")
	t1 := f.addMonthlyTarget(t, "t1", inUnit)
	t2 := f.addMonthlyTarget(t, "t2", outUnit)
	f.addUpdate(t, t1, fiscal.NewDate(2024, time.June, 30), "30")
	f.addUpdate(t, t2, fiscal.NewDate(2024, time.June, 30), "5")

	agg := rollup.NewAggregator(f.store)
	dash, err := agg.DashboardFor(context.Background(), f.fy, "Directorate A", asOf)
	require.NoError(t, err)
	require.Len(t, dash.Cards, 1)

	// Only Directorate A's target contributes: 30/30 = 100%.
	assert.True(t, dash.Cards[0].YTDTarget.Equal(d("30")))
	assert.Equal(t, progress.RAGGreen, dash.Cards[0].RAG)
}

func TestDashboard_BudgetBurn(t *testing.T) {
	f := newFixture(t)
	asOf := fiscal.NewDate(2024, time.June, 30)

	kpa := f.addKPA(t, "kpa-1", "Finance")
	item := f.addItem(t, "item-1", kpa, "") // planned 1000
	t1 := f.addMonthlyTarget(t, "t1", item)
	f.addUpdate(t, t1, fiscal.NewDate(2024, time.June, 30), "30")
	f.addCostLine(t, item, fiscal.NewDate(2024, time.April, 1), fiscal.NewDate(2024, time.April, 30), "250")

	agg := rollup.NewAggregator(f.store)
	dash, err := agg.DashboardFor(context.Background(), f.fy, "", asOf)
	require.NoError(t, err)

	assert.True(t, dash.Summary.TotalPlanned.Equal(d("1000")))
	assert.True(t, dash.Summary.TotalSpend.Equal(d("250")))
	assert.True(t, dash.Summary.BudgetBurnPct.Equal(d("25")), "burn %s", dash.Summary.BudgetBurnPct)
}

// =============================================================================
// DRILLDOWN: WORST CASE VOTE
// =============================================================================

func TestDrilldown_WorstCaseVote(t *testing.T) {
	// GIVEN: one plan item with a GREEN and a RED target
	f := newFixture(t)
	asOf := fiscal.NewDate(2024, time.June, 30)

	kpa := f.addKPA(t, "kpa-1", "Service Delivery")
	item := f.addItem(t, "item-1", kpa, "")
	t1 := f.addMonthlyTarget(t, "t1", item)
	t2 := f.addMonthlyTarget(t, "t2", item)
	f.addUpdate(t, t1, fiscal.NewDate(2024, time.June, 30), "45") // GREEN
	f.addUpdate(t, t2, fiscal.NewDate(2024, time.June, 30), "12") // RED

	// WHEN
	agg := rollup.NewAggregator(f.store)
	dd, err := agg.DrilldownFor(context.Background(), kpa, asOf)
	require.NoError(t, err)
	require.Len(t, dd.Rows, 1)

	// THEN: any RED target drags the whole item RED
	assert.Equal(t, progress.RAGRed, dd.Rows[0].RAG)
	assert.True(t, dd.Rows[0].Variance.Equal(d("-3")), "variance %s", dd.Rows[0].Variance)
}

func TestDrilldown_SpendAlignment(t *testing.T) {
	f := newFixture(t)
	asOf := fiscal.NewDate(2024, time.June, 30)

	kpa := f.addKPA(t, "kpa-1", "Finance")
	item := f.addItem(t, "item-1", kpa, "") // planned 1000
	t1 := f.addMonthlyTarget(t, "t1", item)
	f.addUpdate(t, t1, fiscal.NewDate(2024, time.June, 30), "12") // 40% progress
	// 65% spend vs 40% progress: 25-point gap raises the flag.
	f.addCostLine(t, item, fiscal.NewDate(2024, time.April, 1), fiscal.NewDate(2024, time.April, 30), "650")

	agg := rollup.NewAggregator(f.store)
	dd, err := agg.DrilldownFor(context.Background(), kpa, asOf)
	require.NoError(t, err)
	require.Len(t, dd.Rows, 1)

	assert.True(t, dd.Rows[0].SpendAlignmentFlag)
}

func TestDrilldown_UnknownKPA(t *testing.T) {
	f := newFixture(t)
	agg := rollup.NewAggregator(f.store)
	_, err := agg.DrilldownFor(context.Background(), "missing", fiscal.NewDate(2024, time.June, 30))
	assert.Error(t, err)
}

// =============================================================================
// WORST CASE VOTE TABLE
// =============================================================================

func TestWorstCase(t *testing.T) {
	tests := []struct {
		name string
		rags []progress.RAG
		want progress.RAG
	}{
		{"empty is grey", nil, progress.RAGGrey},
		{"all grey", []progress.RAG{progress.RAGGrey, progress.RAGGrey}, progress.RAGGrey},
		{"green only", []progress.RAG{progress.RAGGreen}, progress.RAGGreen},
		{"amber beats green", []progress.RAG{progress.RAGGreen, progress.RAGAmber}, progress.RAGAmber},
		{"red beats everything", []progress.RAG{progress.RAGGreen, progress.RAGAmber, progress.RAGRed}, progress.RAGRed},
		{"green with grey stays green", []progress.RAG{progress.RAGGrey, progress.RAGGreen}, progress.RAGGreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rollup.WorstCase(tt.rags))
		})
	}
}
