/*
Package rollup aggregates progress and spend across the plan hierarchy.

PURPOSE:
  Produces the two read models the UI renders: dashboard cards (one per
  KPA for a financial year) and KPA drilldown rows (one per plan item).

TWO DIFFERENT ROLLUPS, ON PURPOSE:
  The dashboard sums YTD numerators and denominators across a KPA first
  and classifies the summed percentage once (sum-then-classify). The
  drilldown takes a worst-case vote across a plan item's targets
  (any RED -> RED, else any AMBER -> AMBER). These are genuinely
  different algorithms for what looks like the same metric; both are
  kept because the views they feed are defined that way.

Everything is recomputed from the ledgers on each call; there is no
cache or background scheduler for derived figures.
*/
package rollup

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
	"github.com/BigAlzz/smon/progress"
	"github.com/BigAlzz/smon/spend"
)

// =============================================================================
// STORE - Read surface for aggregation
// =============================================================================

// Store lists active rows only; updates come back in chronological order.
type Store interface {
	GetFinancialYear(ctx context.Context, id string) (*fiscal.FinancialYear, error)
	GetKPA(ctx context.Context, id plan.KPAID) (*plan.KPA, error)
	ListKPAs(ctx context.Context, financialYearID string) ([]plan.KPA, error)
	ListPlanItems(ctx context.Context, kpa plan.KPAID) ([]plan.OperationalPlanItem, error)
	ListTargets(ctx context.Context, item plan.PlanItemID) ([]plan.Target, error)
	ListUpdates(ctx context.Context, target plan.TargetID, from, to fiscal.Date) ([]plan.ProgressUpdate, error)
	ListCostLines(ctx context.Context, item plan.PlanItemID) ([]plan.CostLine, error)
}

// =============================================================================
// READ MODELS
// =============================================================================

// KPACard is one dashboard tile.
type KPACard struct {
	KPAID     plan.KPAID
	Title     string
	OwnerName string

	RAG       progress.RAG
	YTDTarget decimal.Decimal
	YTDActual decimal.Decimal
	Percent   decimal.Decimal

	PlannedBudget decimal.Decimal
	ActualSpend   decimal.Decimal
	BudgetBurnPct decimal.Decimal
}

// Summary is the CEO-level overview across all cards.
type Summary struct {
	OnTrack   int // GREEN
	AtRisk    int // AMBER
	OffTrack  int // RED
	NoData    int // GREY
	TotalKPAs int

	// OverallScore is the average percent-complete across cards, nil when
	// there are no KPAs to average.
	OverallScore *decimal.Decimal

	TotalPlanned  decimal.Decimal
	TotalSpend    decimal.Decimal
	BudgetBurnPct decimal.Decimal
}

type Dashboard struct {
	FinancialYear fiscal.FinancialYear
	AsOf          fiscal.Date
	Cards         []KPACard
	Summary       Summary
}

// DrilldownRow is one plan item in the KPA drilldown table.
type DrilldownRow struct {
	PlanItemID plan.PlanItemID
	Output     string
	Indicator  string
	Owner      string

	YTDTarget decimal.Decimal
	YTDActual decimal.Decimal
	Variance  decimal.Decimal
	RAG       progress.RAG
	Forecast  decimal.Decimal

	PlannedBudget decimal.Decimal
	ActualSpend   decimal.Decimal
	SpendPct      decimal.Decimal
	ProgressPct   decimal.Decimal

	SpendAlignmentFlag bool
}

type Drilldown struct {
	KPA  plan.KPA
	AsOf fiscal.Date
	Rows []DrilldownRow
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// DashboardFor builds the dashboard for a financial year, optionally
// filtered to one organizational unit (plan items' unit/sub-directorate).
func (a *Aggregator) DashboardFor(ctx context.Context, fy fiscal.FinancialYear, orgUnit string, asOf fiscal.Date) (Dashboard, error) {
	kpas, err := a.store.ListKPAs(ctx, fy.ID)
	if err != nil {
		return Dashboard{}, err
	}

	dash := Dashboard{FinancialYear: fy, AsOf: asOf}
	percentSum := decimal.Zero

	for _, k := range kpas {
		card, err := a.buildCard(ctx, k, fy, orgUnit, asOf)
		if err != nil {
			return Dashboard{}, err
		}

		switch card.RAG {
		case progress.RAGGreen:
			dash.Summary.OnTrack++
		case progress.RAGAmber:
			dash.Summary.AtRisk++
		case progress.RAGRed:
			dash.Summary.OffTrack++
		default:
			dash.Summary.NoData++
		}
		percentSum = percentSum.Add(card.Percent)
		dash.Summary.TotalPlanned = dash.Summary.TotalPlanned.Add(card.PlannedBudget)
		dash.Summary.TotalSpend = dash.Summary.TotalSpend.Add(card.ActualSpend)
		dash.Cards = append(dash.Cards, card)
	}

	dash.Summary.TotalKPAs = len(dash.Cards)
	if n := len(dash.Cards); n > 0 {
		avg := percentSum.Div(decimal.NewFromInt(int64(n)))
		dash.Summary.OverallScore = &avg
	}
	if !dash.Summary.TotalPlanned.IsZero() {
		dash.Summary.BudgetBurnPct = dash.Summary.TotalSpend.
			Div(dash.Summary.TotalPlanned).Mul(decimal.NewFromInt(100))
	}
	return dash, nil
}

// buildCard sums YTD target/actual across every active target of every
// active plan item, then classifies the summed percentage once.
func (a *Aggregator) buildCard(ctx context.Context, k plan.KPA, fy fiscal.FinancialYear, orgUnit string, asOf fiscal.Date) (KPACard, error) {
	card := KPACard{KPAID: k.ID, Title: k.Title, OwnerName: k.OwnerName}

	items, err := a.store.ListPlanItems(ctx, k.ID)
	if err != nil {
		return KPACard{}, err
	}

	ytdTarget, ytdActual := decimal.Zero, decimal.Zero
	anyData := false

	for _, item := range items {
		if orgUnit != "" && item.UnitSubdirectorate != orgUnit {
			continue
		}

		lines, err := a.store.ListCostLines(ctx, item.ID)
		if err != nil {
			return KPACard{}, err
		}
		sp := spend.ComputeItemSpend(item, lines, fy, asOf)
		card.PlannedBudget = card.PlannedBudget.Add(sp.Planned)
		card.ActualSpend = card.ActualSpend.Add(sp.Actual)

		targets, err := a.store.ListTargets(ctx, item.ID)
		if err != nil {
			return KPACard{}, err
		}
		for _, t := range targets {
			updates, err := a.store.ListUpdates(ctx, t.ID, fy.Start, fiscal.MinDate(fy.End, asOf))
			if err != nil {
				return KPACard{}, err
			}
			ytdTarget = ytdTarget.Add(progress.YTDTargetValue(t, fy, asOf))
			ytdActual = ytdActual.Add(progress.SumActualsYTD(updates, fy, asOf))
			if len(updates) > 0 {
				anyData = true
			}
		}
	}

	card.YTDTarget = ytdTarget
	card.YTDActual = ytdActual
	card.Percent = progress.ComputePercent(ytdActual, ytdTarget)

	// A KPA with no recorded progress at all shows GREY, not RED: absence
	// of data is not failure.
	if !anyData {
		card.RAG = progress.RAGGrey
	} else {
		card.RAG = progress.ComputeRAGFromPercent(card.Percent, nil)
	}

	if !card.PlannedBudget.IsZero() {
		card.BudgetBurnPct = card.ActualSpend.Div(card.PlannedBudget).Mul(decimal.NewFromInt(100))
	}
	return card, nil
}

// DrilldownFor builds the per-item rows for one KPA. Item RAG is the
// worst case across its targets: RED > AMBER > GREEN, GREY when no
// target has data.
func (a *Aggregator) DrilldownFor(ctx context.Context, kpaID plan.KPAID, asOf fiscal.Date) (Drilldown, error) {
	k, err := a.store.GetKPA(ctx, kpaID)
	if err != nil {
		return Drilldown{}, err
	}
	if k == nil {
		return Drilldown{}, progress.ErrTargetNotFound
	}
	fy, err := a.store.GetFinancialYear(ctx, k.FinancialYearID)
	if err != nil {
		return Drilldown{}, err
	}
	if fy == nil {
		return Drilldown{}, progress.ErrTargetNotFound
	}

	items, err := a.store.ListPlanItems(ctx, k.ID)
	if err != nil {
		return Drilldown{}, err
	}

	dd := Drilldown{KPA: *k, AsOf: asOf}
	for _, item := range items {
		row, err := a.buildRow(ctx, item, *fy, asOf)
		if err != nil {
			return Drilldown{}, err
		}
		dd.Rows = append(dd.Rows, row)
	}
	return dd, nil
}

func (a *Aggregator) buildRow(ctx context.Context, item plan.OperationalPlanItem, fy fiscal.FinancialYear, asOf fiscal.Date) (DrilldownRow, error) {
	row := DrilldownRow{
		PlanItemID: item.ID,
		Output:     item.Output,
		Indicator:  item.Indicator,
		Owner:      item.ResponsibleOfficer,
	}

	targets, err := a.store.ListTargets(ctx, item.ID)
	if err != nil {
		return DrilldownRow{}, err
	}

	var rags []progress.RAG
	for _, t := range targets {
		updates, err := a.store.ListUpdates(ctx, t.ID, fy.Start, fiscal.MinDate(fy.End, asOf))
		if err != nil {
			return DrilldownRow{}, err
		}

		tTarget := progress.YTDTargetValue(t, fy, asOf)
		tActual := progress.SumActualsYTD(updates, fy, asOf)
		tPercent := progress.ComputePercent(tActual, tTarget)

		row.YTDTarget = row.YTDTarget.Add(tTarget)
		row.YTDActual = row.YTDActual.Add(tActual)
		row.Forecast = row.Forecast.Add(progress.ComputeForecastValue(t, updates, tActual, fy, asOf))

		if len(updates) == 0 {
			rags = append(rags, progress.RAGGrey)
		} else {
			rags = append(rags, progress.ComputeRAGFromPercent(tPercent, &t))
		}
	}

	row.RAG = WorstCase(rags)
	row.Variance = row.YTDActual.Sub(row.YTDTarget)
	row.ProgressPct = progress.ComputePercent(row.YTDActual, row.YTDTarget)

	lines, err := a.store.ListCostLines(ctx, item.ID)
	if err != nil {
		return DrilldownRow{}, err
	}
	sp := spend.ComputeItemSpend(item, lines, fy, asOf)
	row.PlannedBudget = sp.Planned
	row.ActualSpend = sp.Actual
	row.SpendPct = sp.SpendPct
	row.SpendAlignmentFlag = spend.AlignmentFlag(sp.SpendPct, row.ProgressPct)

	return row, nil
}

// WorstCase votes RED > AMBER > GREEN across target statuses; GREY when
// no target has data.
func WorstCase(rags []progress.RAG) progress.RAG {
	worst := progress.RAGGrey
	for _, r := range rags {
		switch r {
		case progress.RAGRed:
			return progress.RAGRed
		case progress.RAGAmber:
			worst = progress.RAGAmber
		case progress.RAGGreen:
			if worst != progress.RAGAmber {
				worst = progress.RAGGreen
			}
		}
	}
	return worst
}
