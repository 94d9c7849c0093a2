package plan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
)

// =============================================================================
// TARGET - A measurable goal on a plan item
// =============================================================================

type Unit string

const (
	UnitNumber     Unit = "NUMBER"
	UnitPercentage Unit = "PERCENTAGE"
	UnitCurrency   Unit = "CURRENCY"
	UnitRatio      Unit = "RATIO"
	UnitDays       Unit = "DAYS"
	UnitHours      Unit = "HOURS"
	UnitPeople     Unit = "PEOPLE"
	UnitDocuments  Unit = "DOCUMENTS"
	UnitEvents     Unit = "EVENTS"
	UnitOther      Unit = "OTHER"
)

type Periodicity string

const (
	Monthly   Periodicity = "MONTHLY"
	Quarterly Periodicity = "QUARTERLY"
	Annual    Periodicity = "ANNUAL"
	Milestone Periodicity = "MILESTONE"
)

// Default RAG thresholds, used when a target does not override them.
var (
	DefaultGreenThreshold = decimal.NewFromInt(95)
	DefaultAmberThreshold = decimal.NewFromInt(80)
)

// Target defines what "on track" means for one measurable item.
//
// INVARIANT: GreenThreshold >= AmberThreshold.
type Target struct {
	ID         TargetID
	PlanItemID PlanItemID
	Name       string

	Value    decimal.Decimal
	Unit     Unit
	Baseline decimal.Decimal

	DueDate     fiscal.Date
	Periodicity Periodicity

	GreenThreshold decimal.Decimal
	AmberThreshold decimal.Decimal

	// Stored but unused by the core calculation paths.
	PositiveTolerance decimal.Decimal
	NegativeTolerance decimal.Decimal

	IsCumulative bool
	State        EntityState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTarget returns a target with the standard 95/80 thresholds.
func NewTarget(planItem PlanItemID, name string, value decimal.Decimal) Target {
	return Target{
		ID:             TargetID(NewID()),
		PlanItemID:     planItem,
		Name:           name,
		Value:          value,
		Unit:           UnitNumber,
		Periodicity:    Annual,
		GreenThreshold: DefaultGreenThreshold,
		AmberThreshold: DefaultAmberThreshold,
		IsCumulative:   true,
		State:          StateActive,
	}
}

// Validate checks the target invariants.
func (t Target) Validate() error {
	if t.GreenThreshold.LessThan(t.AmberThreshold) {
		return fmt.Errorf("green threshold %s below amber threshold %s",
			t.GreenThreshold, t.AmberThreshold)
	}
	hundred := decimal.NewFromInt(100)
	for _, th := range []decimal.Decimal{t.GreenThreshold, t.AmberThreshold} {
		if th.IsNegative() || th.GreaterThan(hundred) {
			return fmt.Errorf("threshold %s out of range [0, 100]", th)
		}
	}
	switch t.Periodicity {
	case Monthly, Quarterly, Annual, Milestone, "":
	default:
		return fmt.Errorf("unknown periodicity %q", t.Periodicity)
	}
	return nil
}

// Thresholds returns the target's RAG thresholds, falling back to the
// 95/80 defaults when unset.
func (t Target) Thresholds() (green, amber decimal.Decimal) {
	green, amber = t.GreenThreshold, t.AmberThreshold
	if green.IsZero() && amber.IsZero() {
		green, amber = DefaultGreenThreshold, DefaultAmberThreshold
	}
	return green, amber
}

// OverdueForUpdate reports whether the target has no progress recorded at
// all and its due date has passed. The upstream system also intended a
// per-periodicity staleness check, but that branch compared lower-cased
// periodicity names against upper-case stored values and never matched;
// only the no-updates case is observable behavior, so only it is kept.
func (t Target) OverdueForUpdate(latest *ProgressUpdate, today fiscal.Date) bool {
	if t.DueDate.IsZero() {
		return false
	}
	if latest == nil {
		return today.After(t.DueDate)
	}
	return false
}
