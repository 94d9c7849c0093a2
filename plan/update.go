package plan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
)

// =============================================================================
// PROGRESS UPDATE - One reporting-period submission against a target
// =============================================================================

type PeriodType string

const (
	PeriodMonthly   PeriodType = "MONTHLY"
	PeriodQuarterly PeriodType = "QUARTERLY"
	PeriodAnnual    PeriodType = "ANNUAL"
	PeriodMilestone PeriodType = "MILESTONE"
)

type RiskRating string

const (
	RiskLow      RiskRating = "LOW"
	RiskMedium   RiskRating = "MEDIUM"
	RiskHigh     RiskRating = "HIGH"
	RiskCritical RiskRating = "CRITICAL"
)

type ForecastConfidence string

const (
	ConfidenceHigh   ForecastConfidence = "HIGH"
	ConfidenceMedium ForecastConfidence = "MEDIUM"
	ConfidenceLow    ForecastConfidence = "LOW"
)

// ProgressUpdate is one period-bound actual-value submission.
//
// INVARIANT: at most one active row per (target, period_start, period_end);
// saving a draft for the same period updates in place.
//
// Lifecycle: draft -> submitted -> approved, or rejected back to draft.
// Rejected updates clear both the submitted and approved flags so the
// author can revise and resubmit. Rows are archived, never deleted.
type ProgressUpdate struct {
	ID       UpdateID
	TargetID TargetID

	PeriodType  PeriodType
	PeriodStart fiscal.Date
	PeriodEnd   fiscal.Date
	PeriodName  string // e.g. "April 2024", "Q1 2024/25"

	ActualValue decimal.Decimal

	Narrative    string
	EvidenceURLs []string

	RiskRating        RiskRating
	Issues            string
	CorrectiveActions string

	// ForecastValue is an explicit Estimate-At-Completion override; nil
	// means "extrapolate from YTD actuals".
	ForecastValue      *decimal.Decimal
	ForecastConfidence ForecastConfidence

	Submitted   bool
	SubmittedAt *time.Time

	Approved         bool
	ApprovedBy       UserID
	ApprovedAt       *time.Time
	ApprovalComments string

	State EntityState

	CreatedBy UserID
	UpdatedBy UserID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDraft reports whether the update is still editable by its author.
func (u ProgressUpdate) IsDraft() bool {
	return !u.Submitted && u.State.IsActive()
}

// SamePeriod reports whether another update covers the identical period.
func (u ProgressUpdate) SamePeriod(other ProgressUpdate) bool {
	return u.TargetID == other.TargetID &&
		u.PeriodStart.Equal(other.PeriodStart) &&
		u.PeriodEnd.Equal(other.PeriodEnd)
}
