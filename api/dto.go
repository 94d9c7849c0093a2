/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMAL ENCODING:
  All monetary and percentage values travel as JSON strings ("1234.50"),
  never floats. Clients render them verbatim or parse with their own
  decimal library; float64 round-tripping would corrupt the figures.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
	"github.com/BigAlzz/smon/rollup"
)

// =============================================================================
// FINANCIAL YEARS
// =============================================================================

type FinancialYearDTO struct {
	ID          string `json:"id"`
	YearCode    string `json:"year_code"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	IsActive    bool   `json:"is_active"`
	Description string `json:"description,omitempty"`
}

// CreateYearRequest creates a South African financial year from its
// starting calendar year (2024 -> 1 Apr 2024 to 31 Mar 2025).
type CreateYearRequest struct {
	StartYear   int    `json:"start_year"`
	IsActive    bool   `json:"is_active"`
	Description string `json:"description"`
}

func toYearDTO(fy fiscal.FinancialYear) FinancialYearDTO {
	return FinancialYearDTO{
		ID:          fy.ID,
		YearCode:    fy.YearCode,
		StartDate:   fy.Start.String(),
		EndDate:     fy.End.String(),
		IsActive:    fy.Active,
		Description: fy.Description,
	}
}

// =============================================================================
// DASHBOARD AND DRILLDOWN
// =============================================================================

type KPACardDTO struct {
	KPAID     string `json:"kpa_id"`
	Title     string `json:"title"`
	OwnerName string `json:"owner_name,omitempty"`

	RAG       string `json:"rag"`
	YTDTarget string `json:"ytd_target"`
	YTDActual string `json:"ytd_actual"`
	Percent   string `json:"percent"`

	PlannedBudget string `json:"planned_budget"`
	ActualSpend   string `json:"actual_spend"`
	BudgetBurnPct string `json:"budget_burn_pct"`
}

type DashboardSummaryDTO struct {
	OnTrack   int `json:"on_track"`
	AtRisk    int `json:"at_risk"`
	OffTrack  int `json:"off_track"`
	NoData    int `json:"no_data"`
	TotalKPAs int `json:"total_kpas"`

	OverallScore *string `json:"overall_score,omitempty"`

	TotalPlanned  string `json:"total_planned"`
	TotalSpend    string `json:"total_spend"`
	BudgetBurnPct string `json:"budget_burn_pct"`
}

type DashboardDTO struct {
	FinancialYear FinancialYearDTO    `json:"financial_year"`
	AsOf          string              `json:"as_of"`
	Cards         []KPACardDTO        `json:"cards"`
	Summary       DashboardSummaryDTO `json:"summary"`
}

type DrilldownRowDTO struct {
	PlanItemID string `json:"plan_item_id"`
	Output     string `json:"output"`
	Indicator  string `json:"indicator,omitempty"`
	Owner      string `json:"owner,omitempty"`

	YTDTarget string `json:"ytd_target"`
	YTDActual string `json:"ytd_actual"`
	Variance  string `json:"variance"`
	RAG       string `json:"rag"`
	Forecast  string `json:"forecast"`

	PlannedBudget string `json:"planned_budget"`
	ActualSpend   string `json:"actual_spend"`
	SpendPct      string `json:"spend_pct"`
	ProgressPct   string `json:"progress_pct"`

	SpendAlignmentFlag bool `json:"spend_alignment_flag"`
}

type DrilldownDTO struct {
	KPAID    string            `json:"kpa_id"`
	KPATitle string            `json:"kpa_title"`
	AsOf     string            `json:"as_of"`
	Rows     []DrilldownRowDTO `json:"rows"`
}

func toDashboardDTO(d rollup.Dashboard) DashboardDTO {
	out := DashboardDTO{
		FinancialYear: toYearDTO(d.FinancialYear),
		AsOf:          d.AsOf.String(),
		Cards:         make([]KPACardDTO, 0, len(d.Cards)),
		Summary: DashboardSummaryDTO{
			OnTrack:       d.Summary.OnTrack,
			AtRisk:        d.Summary.AtRisk,
			OffTrack:      d.Summary.OffTrack,
			NoData:        d.Summary.NoData,
			TotalKPAs:     d.Summary.TotalKPAs,
			TotalPlanned:  d.Summary.TotalPlanned.String(),
			TotalSpend:    d.Summary.TotalSpend.String(),
			BudgetBurnPct: d.Summary.BudgetBurnPct.String(),
		},
	}
	if d.Summary.OverallScore != nil {
		s := d.Summary.OverallScore.StringFixed(2)
		out.Summary.OverallScore = &s
	}
	for _, c := range d.Cards {
		out.Cards = append(out.Cards, KPACardDTO{
			KPAID:         string(c.KPAID),
			Title:         c.Title,
			OwnerName:     c.OwnerName,
			RAG:           string(c.RAG),
			YTDTarget:     c.YTDTarget.String(),
			YTDActual:     c.YTDActual.String(),
			Percent:       c.Percent.StringFixed(2),
			PlannedBudget: c.PlannedBudget.String(),
			ActualSpend:   c.ActualSpend.String(),
			BudgetBurnPct: c.BudgetBurnPct.StringFixed(2),
		})
	}
	return out
}

func toDrilldownDTO(d rollup.Drilldown) DrilldownDTO {
	out := DrilldownDTO{
		KPAID:    string(d.KPA.ID),
		KPATitle: d.KPA.Title,
		AsOf:     d.AsOf.String(),
		Rows:     make([]DrilldownRowDTO, 0, len(d.Rows)),
	}
	for _, r := range d.Rows {
		out.Rows = append(out.Rows, DrilldownRowDTO{
			PlanItemID:         string(r.PlanItemID),
			Output:             r.Output,
			Indicator:          r.Indicator,
			Owner:              r.Owner,
			YTDTarget:          r.YTDTarget.String(),
			YTDActual:          r.YTDActual.String(),
			Variance:           r.Variance.String(),
			RAG:                string(r.RAG),
			Forecast:           r.Forecast.StringFixed(2),
			PlannedBudget:      r.PlannedBudget.String(),
			ActualSpend:        r.ActualSpend.String(),
			SpendPct:           r.SpendPct.StringFixed(2),
			ProgressPct:        r.ProgressPct.StringFixed(2),
			SpendAlignmentFlag: r.SpendAlignmentFlag,
		})
	}
	return out
}

// =============================================================================
// PROGRESS UPDATES
// =============================================================================

// SaveDraftRequest is the draft payload. Evidence arrives either as an
// explicit list or as a newline-delimited text block; the list wins when
// both are present.
type SaveDraftRequest struct {
	PeriodType  string `json:"period_type"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PeriodName  string `json:"period_name"`

	ActualValue string `json:"actual_value"`
	Narrative   string `json:"narrative"`

	EvidenceURLs []string `json:"evidence_urls,omitempty"`
	EvidenceText string   `json:"evidence_text,omitempty"`

	RiskRating        string `json:"risk_rating,omitempty"`
	Issues            string `json:"issues,omitempty"`
	CorrectiveActions string `json:"corrective_actions,omitempty"`

	ForecastValue      *string `json:"forecast_value,omitempty"`
	ForecastConfidence string  `json:"forecast_confidence,omitempty"`
}

type ReviewRequest struct {
	Comments string `json:"comments"`
}

type ProgressUpdateDTO struct {
	ID       string `json:"id"`
	TargetID string `json:"target_id"`

	PeriodType  string `json:"period_type"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PeriodName  string `json:"period_name"`

	ActualValue string `json:"actual_value"`
	Narrative   string `json:"narrative,omitempty"`

	EvidenceURLs []string `json:"evidence_urls,omitempty"`

	RiskRating        string `json:"risk_rating,omitempty"`
	Issues            string `json:"issues,omitempty"`
	CorrectiveActions string `json:"corrective_actions,omitempty"`

	ForecastValue      *string `json:"forecast_value,omitempty"`
	ForecastConfidence string  `json:"forecast_confidence,omitempty"`

	Submitted   bool   `json:"submitted"`
	SubmittedAt string `json:"submitted_at,omitempty"`

	Approved         bool   `json:"approved"`
	ApprovedBy       string `json:"approved_by,omitempty"`
	ApprovedAt       string `json:"approved_at,omitempty"`
	ApprovalComments string `json:"approval_comments,omitempty"`

	CreatedBy string `json:"created_by,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toUpdateDTO(u plan.ProgressUpdate) ProgressUpdateDTO {
	dto := ProgressUpdateDTO{
		ID:                 string(u.ID),
		TargetID:           string(u.TargetID),
		PeriodType:         string(u.PeriodType),
		PeriodStart:        u.PeriodStart.String(),
		PeriodEnd:          u.PeriodEnd.String(),
		PeriodName:         u.PeriodName,
		ActualValue:        u.ActualValue.String(),
		Narrative:          u.Narrative,
		EvidenceURLs:       u.EvidenceURLs,
		RiskRating:         string(u.RiskRating),
		Issues:             u.Issues,
		CorrectiveActions:  u.CorrectiveActions,
		ForecastConfidence: string(u.ForecastConfidence),
		Submitted:          u.Submitted,
		Approved:           u.Approved,
		ApprovedBy:         string(u.ApprovedBy),
		ApprovalComments:   u.ApprovalComments,
		CreatedBy:          string(u.CreatedBy),
	}
	if u.ForecastValue != nil {
		v := u.ForecastValue.String()
		dto.ForecastValue = &v
	}
	if u.SubmittedAt != nil {
		dto.SubmittedAt = u.SubmittedAt.UTC().Format(time.RFC3339)
	}
	if u.ApprovedAt != nil {
		dto.ApprovedAt = u.ApprovedAt.UTC().Format(time.RFC3339)
	}
	if !u.UpdatedAt.IsZero() {
		dto.UpdatedAt = u.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// TARGET STATUS
// =============================================================================

// TargetStatusDTO is the computed read model for a single target.
type TargetStatusDTO struct {
	TargetID  string `json:"target_id"`
	Name      string `json:"name"`
	AsOf      string `json:"as_of"`
	RAG       string `json:"rag"`
	YTDTarget string `json:"ytd_target"`
	YTDActual string `json:"ytd_actual"`
	Percent   string `json:"percent"`
	Variance  string `json:"variance"`
	Forecast  string `json:"forecast"`
}

// =============================================================================
// COST LINES
// =============================================================================

type CostLineDTO struct {
	ID         string `json:"id"`
	PlanItemID string `json:"plan_item_id"`

	CostType    string `json:"cost_type"`
	Description string `json:"description,omitempty"`

	BudgetedAmount  string `json:"budgeted_amount"`
	CommittedAmount string `json:"committed_amount"`
	ActualSpend     string `json:"actual_spend"`

	CostPeriodStart string `json:"cost_period_start"`
	CostPeriodEnd   string `json:"cost_period_end"`

	FundingSource       string `json:"funding_source,omitempty"`
	PurchaseOrderNumber string `json:"purchase_order_number,omitempty"`
	SupplierVendor      string `json:"supplier_vendor,omitempty"`

	VarianceAmount     string `json:"variance_amount"`
	VariancePercentage string `json:"variance_percentage"`
	SpendPercentage    string `json:"spend_percentage"`
	RemainingBudget    string `json:"remaining_budget"`
	Status             string `json:"status"`
}

type SaveCostLineRequest struct {
	ID          string `json:"id,omitempty"`
	CostType    string `json:"cost_type"`
	Description string `json:"description"`

	BudgetedAmount  string `json:"budgeted_amount"`
	CommittedAmount string `json:"committed_amount"`
	ActualSpend     string `json:"actual_spend"`

	CostPeriodStart string `json:"cost_period_start"`
	CostPeriodEnd   string `json:"cost_period_end"`

	FundingSource       string `json:"funding_source,omitempty"`
	PurchaseOrderNumber string `json:"purchase_order_number,omitempty"`
	SupplierVendor      string `json:"supplier_vendor,omitempty"`
}

func toCostLineDTO(cl plan.CostLine) CostLineDTO {
	return CostLineDTO{
		ID:                  string(cl.ID),
		PlanItemID:          string(cl.PlanItemID),
		CostType:            string(cl.CostType),
		Description:         cl.Description,
		BudgetedAmount:      cl.BudgetedAmount.String(),
		CommittedAmount:     cl.CommittedAmount.String(),
		ActualSpend:         cl.ActualSpend.String(),
		CostPeriodStart:     cl.CostPeriodStart.String(),
		CostPeriodEnd:       cl.CostPeriodEnd.String(),
		FundingSource:       string(cl.FundingSource),
		PurchaseOrderNumber: cl.PurchaseOrderNumber,
		SupplierVendor:      cl.SupplierVendor,
		VarianceAmount:      cl.VarianceAmount().String(),
		VariancePercentage:  cl.VariancePercentage().StringFixed(2),
		SpendPercentage:     cl.SpendPercentage().StringFixed(2),
		RemainingBudget:     cl.RemainingBudget().String(),
		Status:              string(cl.Status()),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// Lock context, populated on 423 responses only.
	QuarterEnd string `json:"quarter_end,omitempty"`
	GraceDays  int    `json:"grace_days,omitempty"`
}

// parseDecimalField parses a decimal string, treating empty as zero.
func parseDecimalField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
