/*
Package plan defines the operational-plan entity hierarchy.

PURPOSE:
  KPA -> OperationalPlanItem -> Target -> ProgressUpdate is a strict
  ownership chain; CostLine hangs off plan items. These are plain data
  records: all derived figures (YTD, RAG, variance, spend) are computed
  by the progress, spend, and rollup packages at read time.

DESIGN PRINCIPLES:
  1. Exact arithmetic: decimal.Decimal for every monetary and percentage
     field, never float64.
  2. Soft delete: entities carry an explicit Active/Archived state; audit
     history depends on archived rows staying queryable.
  3. Type-safe IDs: distinct string types prevent mixing a TargetID with
     a PlanItemID at compile time.

SEE ALSO:
  - target.go: Target definition and validation
  - update.go: ProgressUpdate and its approval workflow fields
  - costline.go: budget/spend records
*/
package plan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	KPAID      string
	PlanItemID string
	TargetID   string
	UpdateID   string
	CostLineID string
	UserID     string
)

// NewID returns a fresh random identifier.
func NewID() string { return uuid.NewString() }

// =============================================================================
// ENTITY STATE - Soft delete as an explicit state, not a stray bool
// =============================================================================

type EntityState string

const (
	StateActive   EntityState = "ACTIVE"
	StateArchived EntityState = "ARCHIVED"
)

func (s EntityState) IsActive() bool { return s == StateActive || s == "" }

// =============================================================================
// KPA - Key Performance Area
// =============================================================================

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// KPA is a strategic focus area owned by a senior manager for one
// financial year.
type KPA struct {
	ID                 KPAID
	Title              string
	Description        string
	StrategicObjective string
	OwnerID            UserID
	OwnerName          string
	FinancialYearID    string
	OrgUnit            string
	Order              int
	State              EntityState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// OPERATIONAL PLAN ITEM
// =============================================================================

// OperationalPlanItem is one line of the operational plan: an output with
// its indicator, costs, and responsibility fields.
type OperationalPlanItem struct {
	ID                PlanItemID
	KPAID             KPAID
	Output            string
	Indicator         string
	TargetDescription string
	Activities        []string
	Inputs            []string

	InputCost  decimal.Decimal
	OutputCost decimal.Decimal

	Timeframe string
	StartDate *time.Time
	EndDate   *time.Time

	BudgetProgramme      string
	BudgetObjective      string
	BudgetResponsibility string

	ResponsibleOfficer string
	UnitSubdirectorate string
	Office             string

	Priority Priority
	Notes    string
	State    EntityState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalBudget is the planned budget for the item: input plus output cost.
// Static fields, not time-apportioned.
func (i OperationalPlanItem) TotalBudget() decimal.Decimal {
	return i.InputCost.Add(i.OutputCost)
}
